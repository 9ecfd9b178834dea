package peermesh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/domain"
	"github.com/ostrenko/confab/internal/wire"
)

const (
	clientWriteWait  = 10 * time.Second
	clientPongWait   = 60 * time.Second
	clientPingPeriod = (clientPongWait * 9) / 10
	maxFrameSize     = 64 * 1024
)

// Hooks receive server events the mesh itself does not consume. Nil hooks
// are skipped.
type Hooks struct {
	OnRoomUsers    func(users []wire.RoomUser)
	OnUserJoined   func(u wire.UserJoined)
	OnUserLeft     func(id string)
	OnChat         func(m domain.ChatMessage)
	OnChatUpdated  func(m domain.ChatMessage)
	OnChatDeleted  func(d wire.MessageDeleted)
	OnNotification func(n wire.MeetingNotification)
	OnMeetingEnded func()
	OnServerError  func(msg string)
}

// Client is the signaling side of one meeting participant: a WebSocket to
// the relay plus the mesh that reacts to the events arriving over it.
type Client struct {
	serverURL string
	token     string

	mesh  *Mesh
	hooks Hooks

	conn     *websocket.Conn
	outgoing chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient builds the signaling side. The mesh is attached afterwards
// since it needs the client as its Signaler.
func NewClient(serverURL, token string, hooks Hooks) *Client {
	return &Client{
		serverURL: serverURL,
		token:     token,
		hooks:     hooks,
		outgoing:  make(chan []byte, 16),
	}
}

// AttachMesh wires the mesh the dispatch loop drives. Must be called
// before Run.
func (c *Client) AttachMesh(m *Mesh) { c.mesh = m }

// Connect dials the signal endpoint and starts the pumps. Run must be
// called to drain incoming events.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/api/ws/signal"
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial signal endpoint: %w", err)
	}
	c.conn = conn
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	})

	go c.writePump(ctx)
	return nil
}

// Run reads and dispatches events until the connection drops or the
// context ends.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()
	_ = c.conn.SetReadDeadline(time.Now().Add(clientPongWait))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read signal frame: %w", err)
		}
		c.dispatch(ctx, data)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(clientPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.outgoing:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "peermesh").Msg("bad frame")
		return
	}

	switch env.Event {
	case wire.EventRoomUsers:
		var users []wire.RoomUser
		if err := json.Unmarshal(env.Data, &users); err == nil && c.hooks.OnRoomUsers != nil {
			c.hooks.OnRoomUsers(users)
		}
	case wire.EventUserJoined:
		var u wire.UserJoined
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return
		}
		if err := c.mesh.HandleUserJoined(ctx, u.ID); err != nil {
			log.Error().Err(err).Str("module", "peermesh").Str("peer", u.ID).Msg("initiate toward newcomer")
		}
		if c.hooks.OnUserJoined != nil {
			c.hooks.OnUserJoined(u)
		}
	case wire.EventUserLeft:
		var u wire.UserLeft
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return
		}
		c.mesh.HandleUserLeft(u.ID)
		if c.hooks.OnUserLeft != nil {
			c.hooks.OnUserLeft(u.ID)
		}
	case wire.EventOffer:
		var sdp wire.SDP
		if err := json.Unmarshal(env.Data, &sdp); err != nil {
			return
		}
		if err := c.mesh.HandleOffer(ctx, sdp.From, sdp.SDP); err != nil {
			log.Error().Err(err).Str("module", "peermesh").Str("peer", sdp.From).Msg("handle offer")
		}
	case wire.EventAnswer:
		var sdp wire.SDP
		if err := json.Unmarshal(env.Data, &sdp); err != nil {
			return
		}
		if err := c.mesh.HandleAnswer(sdp.From, sdp.SDP); err != nil {
			log.Error().Err(err).Str("module", "peermesh").Str("peer", sdp.From).Msg("handle answer")
		}
	case wire.EventICECandidate:
		var cand wire.ICECandidate
		if err := json.Unmarshal(env.Data, &cand); err != nil {
			return
		}
		if err := c.mesh.HandleCandidate(cand.From, cand.Candidate); err != nil {
			log.Debug().Err(err).Str("module", "peermesh").Str("peer", cand.From).Msg("handle candidate")
		}
	case wire.EventReceiveMessage:
		var m domain.ChatMessage
		if err := json.Unmarshal(env.Data, &m); err == nil && c.hooks.OnChat != nil {
			c.hooks.OnChat(m)
		}
	case wire.EventMessageUpdated, wire.EventMessageReaction:
		var m domain.ChatMessage
		if err := json.Unmarshal(env.Data, &m); err == nil && c.hooks.OnChatUpdated != nil {
			c.hooks.OnChatUpdated(m)
		}
	case wire.EventMessageDeleted:
		var d wire.MessageDeleted
		if err := json.Unmarshal(env.Data, &d); err == nil && c.hooks.OnChatDeleted != nil {
			c.hooks.OnChatDeleted(d)
		}
	case wire.EventMeetingNotification, wire.EventMeetingStarted:
		var n wire.MeetingNotification
		if err := json.Unmarshal(env.Data, &n); err == nil && c.hooks.OnNotification != nil {
			c.hooks.OnNotification(n)
		}
	case wire.EventMeetingEnded:
		c.mesh.Close()
		if c.hooks.OnMeetingEnded != nil {
			c.hooks.OnMeetingEnded()
		}
	case wire.EventError:
		var e wire.Error
		if err := json.Unmarshal(env.Data, &e); err == nil && c.hooks.OnServerError != nil {
			c.hooks.OnServerError(e.Error)
		}
	default:
		log.Debug().Str("module", "peermesh").Str("event", env.Event).Msg("unhandled event")
	}
}

// JoinRoom enters the meeting's room. The server replies with the current
// roster; sitting members will start offering toward this side.
func (c *Client) JoinRoom(meetingID string) error {
	return c.send(wire.EventJoinRoom, wire.JoinRoom{MeetingID: meetingID})
}

// JoinMyRoom subscribes the personal notification channel.
func (c *Client) JoinMyRoom() error {
	return c.send(wire.EventJoinMyRoom, nil)
}

func (c *Client) LeaveRoom() error {
	return c.send(wire.EventLeaveRoom, nil)
}

func (c *Client) EndMeeting() error {
	return c.send(wire.EventEndMeeting, nil)
}

func (c *Client) SendChat(meetingID, text, tempID string) error {
	return c.send(wire.EventSendMessage, wire.SendMessage{MeetingID: meetingID, Text: text, TempID: tempID})
}

func (c *Client) SendOffer(to, sdp string) error {
	return c.send(wire.EventOffer, wire.SDP{To: to, SDP: sdp})
}

func (c *Client) SendAnswer(to, sdp string) error {
	return c.send(wire.EventAnswer, wire.SDP{To: to, SDP: sdp})
}

func (c *Client) SendCandidate(to string, candidate json.RawMessage) error {
	return c.send(wire.EventICECandidate, wire.ICECandidate{To: to, Candidate: candidate})
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.outgoing)
	c.mu.Unlock()
	if c.mesh != nil {
		c.mesh.Close()
	}
}

func (c *Client) send(event string, v any) error {
	b, err := wire.Encode(event, v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("signal client closed")
	}
	select {
	case c.outgoing <- b:
		return nil
	default:
		return fmt.Errorf("signal send queue full")
	}
}
