package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RoomID is assigned by storage. Clients send it either as a JSON number or
// as a numeric string, so both forms decode.
type RoomID int64

func ParseRoomID(s string) (RoomID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse room id %q: %w", s, err)
	}
	return RoomID(n), nil
}

func (id RoomID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id *RoomID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := ParseRoomID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("room id: %w", err)
	}
	*id = RoomID(n)
	return nil
}

// Room is the persisted room metadata. The live membership list is not part
// of it; see core.RoomService.
type Room struct {
	ID          RoomID    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Official    bool      `json:"isOfficial"`
	Locked      bool      `json:"locked"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewRoom is the create request for a room; Password is plaintext here and
// never leaves the storage layer unhashed.
type NewRoom struct {
	Name        string
	Description string
	Category    string
	Password    string
}
