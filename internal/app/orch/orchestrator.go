// Package orch is the coordination core: presence, moderation and message
// relay over the connection registry and the room membership table.
//
// Every event runs to completion under one mutex, so a mutation and the
// fan-out that follows it are never observed half-done. Store calls happen
// before taking the lock or after releasing it.
package orch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

var (
	ErrUnknownConn = errors.New("unknown connection")
	ErrBanned      = errors.New("banned from room")
	ErrInvalidRoom = errors.New("invalid room id")
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Fanout   *app.Fanout
	Store    core.Store

	DefaultAvatar string
	EnforceBans   bool
	Now           func() time.Time

	mu sync.Mutex
}

// New wires an orchestrator around fresh in-memory state.
func New(store core.Store, policy app.Policy) *Orchestrator {
	reg := app.NewRegistry()
	rooms := app.NewRoomManager()
	return &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Fanout:   &app.Fanout{Registry: reg, Rooms: rooms, Policy: policy},
		Store:    store,
		Now:      time.Now,
	}
}

// Connect registers a new transport link. It is not in any room yet.
func (o *Orchestrator) Connect(id core.ConnID, sig core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(id, sig, cancel)
}

// Snapshot returns the live membership list of a room, empty if unknown.
func (o *Orchestrator) Snapshot(id domain.RoomID) []core.MemberDTO {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return []core.MemberDTO{}
	}
	return room.MembersSnapshot()
}

// OnlineCounts maps room id to the number of members present.
func (o *Orchestrator) OnlineCounts() map[domain.RoomID]int {
	out := make(map[domain.RoomID]int)
	for _, info := range o.Rooms.List() {
		out[info.ID] = info.MemberCount
	}
	return out
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// broadcastSnapshot must be called with o.mu held.
func (o *Orchestrator) broadcastSnapshot(id domain.RoomID) {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return
	}
	o.Fanout.BroadcastRoom(id, app.EventRoomUsers, room.MembersSnapshot())
}
