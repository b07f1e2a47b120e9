package app

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// Outbound event names. These are a stable client contract.
const (
	EventRoomUsers      = "roomUsers"
	EventReceiveMessage = "receiveMessage"
	EventChatMessage    = "chatMessage"
	EventSystemMessage  = "systemMessage"
	EventTyping         = "typing"
	EventTypingStop     = "typingStop"
	EventPrivateMessage = "pvMessage"
	EventPassResult     = "passResult"
	EventKicked         = "kicked"
	EventActivity       = "activity"
	EventPong           = "pong"
)

// Envelope is the wire shape of every frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Encode marshals one outbound event.
func Encode(event string, data any) (core.Frame, error) {
	b, err := json.Marshal(outEnvelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

type ChatPayload struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type SystemNotice struct {
	Message string `json:"message"`
}

type TypingPayload struct {
	RoomID   domain.RoomID `json:"roomId"`
	Username string        `json:"username,omitempty"`
}

type PrivateMessage struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Text   string `json:"text"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

type PassResult struct {
	OK bool `json:"ok"`
}

type Activity struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
