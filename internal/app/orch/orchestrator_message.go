package orch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

const (
	displayTimeLayout = "15:04:05"
	historyLimit      = 200
	activeWindow      = 5 * time.Minute
)

// RelayRoomMessage persists a chat line and fans it out to the room under
// event (receiveMessage or chatMessage). Empty input is dropped without side
// effects.
func (o *Orchestrator) RelayRoomMessage(ctx context.Context, event string, roomID domain.RoomID, username, message string) bool {
	if roomID <= 0 || strings.TrimSpace(username) == "" || strings.TrimSpace(message) == "" {
		return false
	}
	if event != app.EventChatMessage {
		event = app.EventReceiveMessage
	}
	now := o.now()
	msg := domain.Message{
		ID:        ulid.Make().String(),
		RoomID:    roomID,
		Username:  username,
		Body:      message,
		CreatedAt: now,
	}
	if o.Store != nil {
		if err := o.Store.InsertMessage(ctx, msg); err != nil {
			log.Error().Err(err).Str("module", "orch").Stringer("room", roomID).Str("username", username).Msg("persist message")
		}
		if err := o.Store.TouchLastSeen(ctx, username, now); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("username", username).Msg("touch last seen")
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.Fanout.BroadcastGlobal(app.EventActivity, app.Activity{
		Type:    "message",
		Message: fmt.Sprintf("💬 %s spoke in Room #%s", username, roomID),
	})
	o.Fanout.BroadcastRoom(roomID, event, app.ChatPayload{
		Username:  username,
		Message:   message,
		Timestamp: now.Format(displayTimeLayout),
	})
	return true
}

// RelayPrivateMessage delivers a copy to every member, in any room, whose
// username is pm.To. It returns the number of copies enqueued.
func (o *Orchestrator) RelayPrivateMessage(pm app.PrivateMessage) int {
	pm.To = strings.TrimSpace(pm.To)
	if pm.To == "" || strings.TrimSpace(pm.Text) == "" {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	var targets []core.ConnID
	for _, room := range o.Rooms.All() {
		room.UpdateMembers(func(id core.ConnID, m *domain.Member) bool {
			if m.Username() == pm.To {
				targets = append(targets, id)
			}
			return false
		})
	}
	sent := 0
	for _, id := range targets {
		if o.Fanout.SendTo(id, app.EventPrivateMessage, pm) {
			sent++
		}
	}
	return sent
}

func (o *Orchestrator) RelayTyping(roomID domain.RoomID, username string) {
	o.relayEphemeral(app.EventTyping, roomID, username)
}

func (o *Orchestrator) RelayTypingStop(roomID domain.RoomID, username string) {
	o.relayEphemeral(app.EventTypingStop, roomID, username)
}

func (o *Orchestrator) relayEphemeral(event string, roomID domain.RoomID, username string) {
	if roomID <= 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Fanout.BroadcastRoom(roomID, event, app.TypingPayload{RoomID: roomID, Username: username})
}

// History returns the latest persisted messages of a room, oldest first.
func (o *Orchestrator) History(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	if o.Store == nil {
		return nil, nil
	}
	msgs, err := o.Store.ListMessages(ctx, roomID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return msgs, nil
}

// ActiveUsers lists usernames that sent a message or disconnected within
// activeWindow of now, most recent first.
func (o *Orchestrator) ActiveUsers(ctx context.Context) ([]string, error) {
	if o.Store == nil {
		return []string{}, nil
	}
	names, err := o.Store.ActiveUsers(ctx, o.now().Add(-activeWindow))
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	return names, nil
}
