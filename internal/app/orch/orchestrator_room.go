package orch

import (
	"context"
	"errors"
	"strings"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type JoinRequest struct {
	RoomID   domain.RoomID
	Username string
	Avatar   string
	Role     domain.Role
}

// Join places the connection in a room. A connection lives in one room at a
// time, so any previous room is left first and gets its own snapshot.
func (o *Orchestrator) Join(ctx context.Context, id core.ConnID, req JoinRequest) error {
	if req.RoomID <= 0 {
		return ErrInvalidRoom
	}
	user, err := domain.NewUser(req.Username)
	if err != nil {
		return err
	}
	if o.EnforceBans && o.Store != nil {
		banned, err := o.Store.IsBanned(ctx, user.Username, req.RoomID)
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("username", user.Username).Stringer("room", req.RoomID).Msg("ban lookup failed")
		}
		if banned {
			o.mu.Lock()
			o.Fanout.SendTo(id, app.EventSystemMessage, app.SystemNotice{Message: "⛔ You are banned from this room."})
			o.mu.Unlock()
			log.Info().Str("module", "orch").Str("conn", string(id)).Str("username", user.Username).Stringer("room", req.RoomID).Msg("banned user refused")
			return ErrBanned
		}
	}
	avatar := req.Avatar
	if avatar == "" {
		avatar = o.DefaultAvatar
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	sig, ok := o.Registry.Signal(id)
	if !ok {
		return ErrUnknownConn
	}
	if prev, ok := o.Registry.RoomOf(id); ok {
		if room, ok := o.Rooms.Get(prev); ok {
			room.RemoveMember(id)
		}
		o.Registry.RemoveRoom(id)
		if prev != req.RoomID {
			o.broadcastSnapshot(prev)
		}
		log.Info().Str("module", "orch").Str("conn", string(id)).Stringer("from_room", prev).Msg("left previous room")
	}

	room := o.Rooms.GetOrCreate(req.RoomID)
	room.AddMember(id, core.NewMemberSession(domain.NewMember(user, avatar, req.Role), sig))
	o.Registry.UpdateRoom(id, req.RoomID)
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("username", user.Username).Stringer("room", req.RoomID).Msg("joined room")

	o.broadcastSnapshot(req.RoomID)
	return nil
}

// Leave takes the connection out of its room without closing the transport.
func (o *Orchestrator) Leave(id core.ConnID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	roomID, ok := o.Registry.RoomOf(id)
	if !ok {
		return
	}
	if room, ok := o.Rooms.Get(roomID); ok {
		room.RemoveMember(id)
	}
	o.Registry.RemoveRoom(id)
	log.Info().Str("module", "orch").Str("conn", string(id)).Stringer("room", roomID).Msg("left room")
	o.broadcastSnapshot(roomID)
}

// Disconnect sweeps the connection out of every room list and the registry.
// Calling it again for the same id does nothing.
func (o *Orchestrator) Disconnect(ctx context.Context, id core.ConnID) {
	var usernames []string

	o.mu.Lock()
	var affected []domain.RoomID
	for _, room := range o.Rooms.All() {
		if ms, ok := room.RemoveMember(id); ok {
			affected = append(affected, room.ID())
			usernames = append(usernames, ms.Meta().Username())
		}
	}
	unbound := o.Registry.Unbind(id)
	for _, roomID := range affected {
		o.broadcastSnapshot(roomID)
	}
	o.mu.Unlock()

	if unbound || len(affected) > 0 {
		log.Info().Str("module", "orch").Str("conn", string(id)).Int("rooms", len(affected)).Msg("disconnected")
	}
	if o.Store == nil {
		return
	}
	for _, name := range usernames {
		if err := o.Store.TouchLastSeen(ctx, name, o.now()); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("username", name).Msg("touch last seen")
		}
	}
}

// ChangeStatus sets the status on every entry of the connection; only the
// room in the registry is re-broadcast.
func (o *Orchestrator) ChangeStatus(id core.ConnID, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, room := range o.Rooms.All() {
		room.UpdateMembers(func(mid core.ConnID, m *domain.Member) bool {
			if mid != id {
				return false
			}
			m.Status = status
			return true
		})
	}
	if roomID, ok := o.Registry.RoomOf(id); ok {
		o.broadcastSnapshot(roomID)
	}
}

// VerifyRoomPassword promotes username to owner of the room when candidate
// matches the stored hash. The caller gets a passResult either way.
func (o *Orchestrator) VerifyRoomPassword(ctx context.Context, id core.ConnID, roomID domain.RoomID, username, candidate string) bool {
	username = strings.TrimSpace(username)
	ok := o.checkPassword(ctx, roomID, candidate)

	o.mu.Lock()
	defer o.mu.Unlock()

	if ok {
		if room, exists := o.Rooms.Get(roomID); exists {
			n := room.UpdateMembers(func(_ core.ConnID, m *domain.Member) bool {
				if m.Username() != username {
					return false
				}
				m.Role = domain.RoleOwner
				return true
			})
			if n > 0 {
				o.broadcastSnapshot(roomID)
			}
		}
		log.Info().Str("module", "orch").Str("username", username).Stringer("room", roomID).Msg("promoted to owner")
	}
	o.Fanout.SendTo(id, app.EventPassResult, app.PassResult{OK: ok})
	return ok
}

func (o *Orchestrator) checkPassword(ctx context.Context, roomID domain.RoomID, candidate string) bool {
	if o.Store == nil || candidate == "" {
		return false
	}
	hash, err := o.Store.RoomPasswordHash(ctx, roomID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			log.Error().Err(err).Str("module", "orch").Stringer("room", roomID).Msg("room password lookup")
		}
		return false
	}
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
