// Package signal is the WebSocket transport adapter: it upgrades
// connections, pumps frames, and routes wire events to the relay, the
// meeting lifecycle and the chat service.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/app"
	"github.com/ostrenko/confab/internal/auth"
	"github.com/ostrenko/confab/internal/chat"
	"github.com/ostrenko/confab/internal/core"
	"github.com/ostrenko/confab/internal/meeting"
	"github.com/ostrenko/confab/internal/store"
)

var ErrBackpressure = errors.New("backpressure")

const sendQueueSize = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Controller struct {
	Orch     *app.Orchestrator
	Meetings *meeting.Service
	Chat     *chat.Service
	Users    store.UserRepository

	ReadLimit  int64
	PingPeriod time.Duration
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and binds a fresh session for the
// authenticated user. One WebSocket is one connection handle: it exists
// from here until either pump exits.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	uid := auth.CallerID(c)
	user, err := ctl.Users.GetUser(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendQueueSize),
	}
	sess := core.NewMemberSession(&user, conn)

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Bind(sid, sess, cancel)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(uid)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, &user, conn)
}
