package core

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Chat/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator. Every call is fallible; callers log
// failures and keep their in-memory state.
type Store interface {
	// RoomPasswordHash returns "" when the room has no password and
	// ErrNotFound when the room does not exist.
	RoomPasswordHash(ctx context.Context, id domain.RoomID) (string, error)
	InsertBan(ctx context.Context, ban domain.Ban) error
	IsBanned(ctx context.Context, username string, id domain.RoomID) (bool, error)
	SetUserRole(ctx context.Context, username string, role domain.Role) error
	InsertMessage(ctx context.Context, msg domain.Message) error
	TouchLastSeen(ctx context.Context, username string, at time.Time) error
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)
	ListMessages(ctx context.Context, id domain.RoomID, limit int) ([]domain.Message, error)

	CreateRoom(ctx context.Context, room domain.NewRoom) (domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	SetRoomOfficial(ctx context.Context, id domain.RoomID, official bool) error

	// Stats counts users active since activeSince and messages per day since
	// weekSince.
	Stats(ctx context.Context, activeSince, weekSince time.Time) (domain.Stats, error)
	Close() error
}
