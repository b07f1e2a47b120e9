package app

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// RoomManagerImpl is the room membership table. Rooms are created lazily on
// first join and kept for the life of the process.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) GetOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(id)
	f.rooms[id] = room
	return room
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

// All returns rooms ordered by id.
func (f *RoomManagerImpl) All() []core.RoomService {
	f.mu.RLock()
	out := make([]core.RoomService, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r)
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b core.RoomService) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	rooms := f.All()
	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, core.RoomInfo{ID: r.ID(), MemberCount: r.MemberCount()})
	}
	return out
}
