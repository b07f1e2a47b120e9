package signal

import (
	"context"
	"encoding/json"
)

func (ctl *SignalWSController) handleChat(ctx context.Context, event string, data json.RawMessage) error {
	p, err := decode[chatPayload](ctl.validate, data)
	if err != nil {
		return err
	}
	ctl.Orch.RelayRoomMessage(ctx, event, p.RoomID, p.Username, p.Message)
	return nil
}

func (ctl *SignalWSController) handleTyping(event string, data json.RawMessage) error {
	p, err := decode[typingPayload](ctl.validate, data)
	if err != nil {
		return err
	}
	if event == eventTypingStop {
		ctl.Orch.RelayTypingStop(p.RoomID, p.Username)
		return nil
	}
	ctl.Orch.RelayTyping(p.RoomID, p.Username)
	return nil
}
