package core

import (
	"errors"
	"slices"
	"sync"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id    domain.RoomID
	mu    sync.RWMutex
	order []ConnID
	byID  map[ConnID]MemberSession
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:   id,
		byID: make(map[ConnID]MemberSession),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *roomImpl) Member(id ConnID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.byID[id]
	return ms, ok
}

// AddMember appends to the list; a second add for the same id replaces the
// entry and moves it to the end.
func (r *roomImpl) AddMember(id ConnID, ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		r.order = slices.DeleteFunc(r.order, func(x ConnID) bool { return x == id })
	}
	r.byID[id] = ms
	r.order = append(r.order, id)
	log.Debug().Str("module", "core.room").Stringer("room", r.id).Str("conn", string(id)).Str("username", ms.Meta().Username()).Msg("member added")
}

func (r *roomImpl) RemoveMember(id ConnID) (MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(x ConnID) bool { return x == id })
	log.Debug().Str("module", "core.room").Stringer("room", r.id).Str("conn", string(id)).Msg("member removed")
	return ms, true
}

func (r *roomImpl) RemoveWhere(match MemberFunc) []ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []ConnID
	kept := r.order[:0]
	for _, id := range r.order {
		if match(id, r.byID[id].Meta()) {
			removed = append(removed, id)
			delete(r.byID, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return removed
}

func (r *roomImpl) UpdateMembers(fn MemberFunc) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.order {
		if fn(id, r.byID[id].Meta()) {
			n++
		}
	}
	return n
}

// Broadcast enqueues data for every member. Members whose queue is full are
// reported in Dropped.
func (r *roomImpl) Broadcast(data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, id := range r.order {
		sig := r.byID[id].Signal()
		if sig == nil {
			continue
		}
		if err := sig.TrySend(data); err != nil {
			if errors.Is(err, ErrBackpressure) {
				res.Dropped = append(res.Dropped, id)
			}
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Stringer("room", r.id).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.order))
	for _, id := range r.order {
		m := r.byID[id].Meta()
		out = append(out, MemberDTO{
			ID:       id,
			Username: m.Username(),
			Avatar:   m.Avatar,
			Role:     m.Role,
			Status:   m.Status,
		})
	}
	return out
}
