package domain

import "time"

type Message struct {
	ID        string    `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}
