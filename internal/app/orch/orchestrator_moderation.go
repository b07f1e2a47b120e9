package orch

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// GrantHost persists the host role and applies it to every live member with
// that username.
func (o *Orchestrator) GrantHost(ctx context.Context, admin, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		return
	}
	o.persistRole(ctx, username, domain.RoleHost)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.setLiveRole(username, domain.RoleHost, func(m *domain.Member) bool { return true })
	o.Fanout.BroadcastGlobal(app.EventSystemMessage, app.SystemNotice{
		Message: fmt.Sprintf("⭐ %s granted Host to %s.", admin, username),
	})
}

// RevokeHost resets live hosts with that username back to user as well as
// the persisted role.
func (o *Orchestrator) RevokeHost(ctx context.Context, admin, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		return
	}
	o.persistRole(ctx, username, domain.RoleUser)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.setLiveRole(username, domain.RoleUser, func(m *domain.Member) bool { return m.Role == domain.RoleHost })
	o.Fanout.BroadcastGlobal(app.EventSystemMessage, app.SystemNotice{
		Message: fmt.Sprintf("❗ %s is no longer Host.", username),
	})
	log.Info().Str("module", "orch").Str("admin", admin).Str("username", username).Msg("host revoked")
}

func (o *Orchestrator) persistRole(ctx context.Context, username string, role domain.Role) {
	if o.Store == nil {
		return
	}
	if err := o.Store.SetUserRole(ctx, username, role); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("username", username).Str("role", role.String()).Msg("persist role")
	}
}

// setLiveRole must be called with o.mu held.
func (o *Orchestrator) setLiveRole(username string, role domain.Role, eligible func(*domain.Member) bool) {
	for _, room := range o.Rooms.All() {
		n := room.UpdateMembers(func(_ core.ConnID, m *domain.Member) bool {
			if m.Username() != username || !eligible(m) {
				return false
			}
			m.Role = role
			return true
		})
		if n > 0 {
			o.broadcastSnapshot(room.ID())
		}
	}
}

// Kick tells the connection it was kicked and removes it from the room. The
// client is expected to leave; the transport stays open. Unknown room or
// non-member is a no-op.
func (o *Orchestrator) Kick(id core.ConnID, roomID domain.RoomID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return false
	}
	if _, ok := room.Member(id); !ok {
		return false
	}
	o.Fanout.SendTo(id, app.EventKicked, nil)
	room.RemoveMember(id)
	if current, ok := o.Registry.RoomOf(id); ok && current == roomID {
		o.Registry.RemoveRoom(id)
	}
	o.broadcastSnapshot(roomID)
	o.Fanout.BroadcastRoom(roomID, app.EventSystemMessage, app.SystemNotice{Message: "🚫 A user was kicked from the room."})
	log.Info().Str("module", "orch").Str("conn", string(id)).Stringer("room", roomID).Msg("kicked")
	return true
}

// Ban records the ban and removes every member with that username from the
// room. Removed connections get a kicked event.
func (o *Orchestrator) Ban(ctx context.Context, username string, roomID domain.RoomID) {
	username = strings.TrimSpace(username)
	if username == "" || roomID <= 0 {
		return
	}
	if o.Store != nil {
		ban := domain.Ban{Username: username, RoomID: roomID, CreatedAt: o.now()}
		if err := o.Store.InsertBan(ctx, ban); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("username", username).Stringer("room", roomID).Msg("persist ban")
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if room, ok := o.Rooms.Get(roomID); ok {
		removed := room.RemoveWhere(func(_ core.ConnID, m *domain.Member) bool { return m.Username() == username })
		for _, id := range removed {
			if current, ok := o.Registry.RoomOf(id); ok && current == roomID {
				o.Registry.RemoveRoom(id)
			}
			o.Fanout.SendTo(id, app.EventKicked, nil)
		}
		o.broadcastSnapshot(roomID)
	}
	o.Fanout.BroadcastGlobal(app.EventSystemMessage, app.SystemNotice{
		Message: fmt.Sprintf("⛔ %s was banned from room #%s.", username, roomID),
	})
	log.Info().Str("module", "orch").Str("username", username).Stringer("room", roomID).Msg("banned")
}

// SetOfficial flags a room as official. Persistence only.
func (o *Orchestrator) SetOfficial(ctx context.Context, roomID domain.RoomID, official bool) error {
	if o.Store == nil {
		return nil
	}
	if err := o.Store.SetRoomOfficial(ctx, roomID, official); err != nil {
		return fmt.Errorf("set official: %w", err)
	}
	return nil
}
