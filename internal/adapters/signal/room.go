package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(ctx context.Context, id core.ConnID, data json.RawMessage) error {
	p, err := decode[joinRoomPayload](ctl.validate, data)
	if err != nil {
		return err
	}
	role, err := domain.ParseRole(p.Role)
	if err != nil {
		return err
	}
	err = ctl.Orch.Join(ctx, id, orch.JoinRequest{
		RoomID:   p.RoomID,
		Username: p.Username,
		Avatar:   p.Avatar,
		Role:     role,
	})
	if errors.Is(err, orch.ErrBanned) {
		return nil
	}
	return err
}

// handleLeave takes the connection out of its room; the socket stays open.
func (ctl *SignalWSController) handleLeave(id core.ConnID) {
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("leave")
	ctl.Orch.Leave(id)
}

func (ctl *SignalWSController) handleCheckPass(ctx context.Context, id core.ConnID, data json.RawMessage) error {
	p, err := decode[checkPassPayload](ctl.validate, data)
	if err != nil {
		return err
	}
	ctl.Orch.VerifyRoomPassword(ctx, id, p.RoomID, p.User, p.Pass)
	return nil
}
