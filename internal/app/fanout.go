package app

import (
	"errors"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Fanout delivers events without queuing, retry or acknowledgement. Every
// send is a non-blocking enqueue on the connection's outbound queue.
type Fanout struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
}

// BroadcastRoom reaches every member of the room, sender included.
func (f *Fanout) BroadcastRoom(id domain.RoomID, event string, data any) core.PublishResult {
	room, ok := f.Rooms.Get(id)
	if !ok {
		return core.PublishResult{}
	}
	frame, err := Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("broadcast room")
		return core.PublishResult{}
	}
	res := room.Broadcast(frame)
	f.onDropped(res.Dropped)
	return res
}

// BroadcastGlobal reaches every connected client regardless of room.
func (f *Fanout) BroadcastGlobal(event string, data any) core.PublishResult {
	frame, err := Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("broadcast global")
		return core.PublishResult{}
	}
	res := core.PublishResult{}
	for _, snap := range f.Registry.All() {
		if snap.Signal == nil {
			continue
		}
		if err := snap.Signal.TrySend(frame); err != nil {
			if errors.Is(err, core.ErrBackpressure) {
				res.Dropped = append(res.Dropped, snap.ID)
			}
			continue
		}
		res.SendTo++
	}
	f.onDropped(res.Dropped)
	return res
}

// SendTo is a unicast; it reports whether the frame was enqueued.
func (f *Fanout) SendTo(id core.ConnID, event string, data any) bool {
	sig, ok := f.Registry.Signal(id)
	if !ok || sig == nil {
		return false
	}
	frame, err := Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Msg("send")
		return false
	}
	if err := sig.TrySend(frame); err != nil {
		if errors.Is(err, core.ErrBackpressure) {
			f.onDropped([]core.ConnID{id})
		}
		return false
	}
	return true
}

func (f *Fanout) onDropped(dropped []core.ConnID) {
	if f.Policy == nil {
		return
	}
	for _, id := range dropped {
		switch f.Policy.OnBackPressure(id) {
		case Disconnect:
			log.Warn().Str("module", "app.fanout").Str("conn", string(id)).Msg("slow consumer, disconnecting")
			f.Registry.Cancel(id)
		case DropFrame:
			log.Debug().Str("module", "app.fanout").Str("conn", string(id)).Msg("slow consumer, frame dropped")
		case NoAction:
		}
	}
}
