package signal

import (
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
)

func (ctl *SignalWSController) handlePing(sig core.SignalConnection) {
	ctl.send(sig, app.EventPong, nil)
}
