package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/core"
	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/wire"
)

const writeWait = 10 * time.Second

// writePump is the single writer for one connection. Frames leave in queue
// order, which is what gives a sender in-order delivery to each peer.
func (ctl *Controller) writePump(ctx context.Context, c *wsSignalConn) {
	pingPeriod := ctl.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid core.SessionID, user *domain.User, c *wsSignalConn) {
	defer func() {
		ctl.onDisconnect(sid, user)
		c.Close()
	}()

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	pongWait := 60 * time.Second
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleFrame(ctx, sid, user, c, data)
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, sid core.SessionID, user *domain.User, c *wsSignalConn, data []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Event {
	case wire.EventJoinRoom:
		ctl.handleJoinRoom(ctx, sid, user, c, env.Data)
	case wire.EventLeaveRoom:
		ctl.handleLeaveRoom(sid, user)
	case wire.EventJoinMyRoom:
		ctl.Orch.Join(sid, domain.UserRoom(user.ID))
	case wire.EventEndMeeting:
		ctl.handleEndMeeting(ctx, sid, user, c)
	case wire.EventOffer, wire.EventAnswer, wire.EventICECandidate:
		ctl.handleRelay(sid, user, c, env)
	case wire.EventSendMessage:
		ctl.handleSendMessage(ctx, user, c, env.Data)
	case wire.EventEditMessage:
		ctl.handleEditMessage(ctx, user, c, env.Data)
	case wire.EventDeleteMessage:
		ctl.handleDeleteMessage(ctx, user, c, env.Data)
	case wire.EventReactToMessage:
		ctl.handleReactToMessage(ctx, user, c, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown event")
		ctl.sendError(c, "unknown_event")
	}
}

func (ctl *Controller) sendEvent(c *wsSignalConn, event string, v any) {
	b, err := wire.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("encode")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *wsSignalConn, msg string) {
	ctl.sendEvent(c, wire.EventError, wire.Error{Error: msg})
}
