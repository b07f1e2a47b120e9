package core

import (
	"github.com/dkeye/Chat/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []ConnID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       ConnID      `json:"id"`
	Username string      `json:"username"`
	Avatar   string      `json:"avatar"`
	Role     domain.Role `json:"role"`
	Status   string      `json:"status,omitempty"`
}

// MemberFunc inspects or mutates one member in place and reports whether it
// matched.
type MemberFunc func(id ConnID, m *domain.Member) bool

// RoomService is the core-facing API of a room.
// It owns the ordered membership list but never closes transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Member(id ConnID) (MemberSession, bool)

	AddMember(id ConnID, ms MemberSession)
	RemoveMember(id ConnID) (MemberSession, bool)
	RemoveWhere(match MemberFunc) []ConnID
	UpdateMembers(fn MemberFunc) int
	Broadcast(data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"users"`
}

type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	All() []RoomService
	List() []RoomInfo
}
