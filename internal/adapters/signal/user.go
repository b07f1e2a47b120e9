package signal

import (
	"encoding/json"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
)

func (ctl *SignalWSController) handleChangeStatus(id core.ConnID, data json.RawMessage) error {
	p, err := decode[statusPayload](ctl.validate, data)
	if err != nil {
		return err
	}
	ctl.Orch.ChangeStatus(id, p.Status)
	return nil
}

func (ctl *SignalWSController) handlePrivateMessage(data json.RawMessage) error {
	p, err := decode[privatePayload](ctl.validate, data)
	if err != nil {
		return err
	}
	ctl.Orch.RelayPrivateMessage(app.PrivateMessage{
		From:   p.From,
		To:     p.To,
		Text:   p.Text,
		Avatar: p.Avatar,
		Role:   p.Role,
	})
	return nil
}
