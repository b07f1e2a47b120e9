package domain

import "time"

// Ban bars a username from one room.
type Ban struct {
	Username  string    `json:"username"`
	RoomID    RoomID    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
}
