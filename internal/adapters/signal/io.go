package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/one-word-story/internal/core"
	"github.com/dkeye/one-word-story/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump owns the connection lifecycle: when it returns the participant
// is marked disconnected and the socket closed.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, cid core.ConnID, identity domain.Identity, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("readPump closing")
		cancel()
		ctl.Orch.MarkDisconnected(context.Background(), cid)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.pongWait()))
	})
	limiter := newInboundLimiter(ctl.opts.RatePerSecond, ctl.opts.RateBurst)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.pongWait()))
		if !limiter.Allow() {
			ctl.sendError(c, domain.ErrRateLimited)
			continue
		}
		ctl.handleSignal(ctx, cid, identity, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cid core.ConnID, identity domain.Identity, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, domain.ErrBadPayload)
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(ctx, cid, c, data)
	case "leave":
		ctl.handleLeave(ctx, cid, c)
	case "submit_word":
		ctl.handleSubmit(ctx, cid, c, data)
	case "create_room":
		ctl.handleCreateRoom(identity, c, data)
	case "close_room":
		ctl.handleCloseRoom(ctx, cid, c)
	case "story":
		ctl.handleStory(cid, c)
	case "ban_word", "unban_word":
		ctl.handleBan(ctx, cid, c, data, env.Type == "ban_word")
	case "rename":
		ctl.handleRename(cid, identity, c, data)
	case "whoami":
		ctl.handleWhoAmI(cid, c)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, domain.ErrBadPayload)
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("sendJSON")
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, err error) {
	ctl.sendJSON(c, domain.NewErrorMessage(err))
}

// decode unmarshals a payload or answers bad_payload.
func (ctl *SignalWSController) decode(c *WsSignalConn, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad payload")
		ctl.sendError(c, domain.ErrBadPayload)
		return false
	}
	return true
}
