package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Inbound event names.
const (
	eventJoinRoom       = "joinRoom"
	eventLeaveRoom      = "leaveRoom"
	eventSendMessage    = "sendMessage"
	eventChatMessage    = "chatMessage"
	eventTyping         = "typing"
	eventTypingStop     = "typingStop"
	eventPrivateMessage = "pvMessage"
	eventCheckPass      = "checkPass"
	eventChangeStatus   = "changeStatus"
	eventPing           = "ping"
)

var errNoData = errors.New("missing data")

type joinRoomPayload struct {
	RoomID   domain.RoomID `json:"roomId" validate:"gt=0"`
	Username string        `json:"username" validate:"required,username_len"`
	Avatar   string        `json:"avatar" validate:"omitempty,max=512"`
	Role     string        `json:"role" validate:"omitempty,oneof=user host owner admin"`
}

type chatPayload struct {
	RoomID   domain.RoomID `json:"roomId" validate:"gt=0"`
	Username string        `json:"username" validate:"required,username_len"`
	Message  string        `json:"message" validate:"required,max=2000"`
}

type typingPayload struct {
	RoomID   domain.RoomID `json:"roomId" validate:"gt=0"`
	Username string        `json:"username" validate:"username_len"`
}

type privatePayload struct {
	From   string `json:"from" validate:"required,username_len"`
	To     string `json:"to" validate:"required,username_len"`
	Text   string `json:"text" validate:"required,max=2000"`
	Avatar string `json:"avatar" validate:"omitempty,max=512"`
	Role   string `json:"role" validate:"omitempty,max=16"`
}

type checkPassPayload struct {
	RoomID domain.RoomID `json:"roomId" validate:"gt=0"`
	User   string        `json:"user" validate:"required,username_len"`
	Pass   string        `json:"pass" validate:"required,max=128"`
}

// statusPayload accepts {"status":"away"} or the bare string "away".
type statusPayload struct {
	Status string `json:"status" validate:"status_len"`
}

func (p *statusPayload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &p.Status)
	}
	type plain statusPayload
	return json.Unmarshal(b, (*plain)(p))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterAlias("username_len", fmt.Sprintf("max=%d", domain.MaxUsernameLen))
	v.RegisterAlias("status_len", fmt.Sprintf("max=%d", domain.MaxStatusLen))
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode unmarshals data into T and validates it.
func decode[T any](v *validator.Validate, data json.RawMessage) (T, error) {
	var p T
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return p, errNoData
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode: %w", err)
	}
	if err := v.Struct(p); err != nil {
		return p, fmt.Errorf("validate: %w", err)
	}
	return p, nil
}
