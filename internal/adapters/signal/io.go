package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, id core.ConnID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("ping failed")
				return
			}
		}
	}
}

// readPump owns the connection teardown: whatever ends the loop, the
// orchestrator is told the connection is gone.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, id core.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		cancel()
		ctl.Orch.Disconnect(context.Background(), id)
		ctl.Limiter.Forget(id)
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 2
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.dispatch(ctx, id, c, data)
		}
	}
}

// dispatch routes one inbound frame. Bad frames are logged and dropped; the
// connection stays up.
func (ctl *SignalWSController) dispatch(ctx context.Context, id core.ConnID, sig core.SignalConnection, data []byte) {
	var env app.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad json")
		return
	}
	if env.Event != eventPing && !ctl.Limiter.Allow(id) {
		log.Warn().Str("module", "signal").Str("conn", string(id)).Str("event", env.Event).Msg("rate limited")
		return
	}

	var err error
	switch env.Event {
	case eventJoinRoom:
		err = ctl.handleJoin(ctx, id, env.Data)
	case eventLeaveRoom:
		ctl.handleLeave(id)
	case eventSendMessage, eventChatMessage:
		err = ctl.handleChat(ctx, env.Event, env.Data)
	case eventTyping, eventTypingStop:
		err = ctl.handleTyping(env.Event, env.Data)
	case eventPrivateMessage:
		err = ctl.handlePrivateMessage(env.Data)
	case eventCheckPass:
		err = ctl.handleCheckPass(ctx, id, env.Data)
	case eventChangeStatus:
		err = ctl.handleChangeStatus(id, env.Data)
	case eventPing:
		ctl.handlePing(sig)
	default:
		log.Warn().Str("module", "signal").Str("conn", string(id)).Str("event", env.Event).Msg("unknown event")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Str("event", env.Event).Msg("event rejected")
	}
}

func (ctl *SignalWSController) send(sig core.SignalConnection, event string, v any) {
	frame, err := app.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("send encode")
		return
	}
	_ = sig.TrySend(frame)
}
