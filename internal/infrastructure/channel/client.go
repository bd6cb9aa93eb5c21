// Package channel maintains the single bidirectional connection to the
// realtime backend. It abstracts room membership, pushed-event subscription,
// and acknowledged actions; every store and view in the process shares one
// physical connection and composes its own handler set on top of it.
package channel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gigspace/internal/domain/entity"
	"gigspace/pkg/errors"
	"gigspace/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Handler receives the raw payload of a pushed event.
type Handler func(data json.RawMessage)

type subscription struct {
	event   string
	handler Handler
}

// Client is the process-wide event channel. Connect establishes the physical
// connection; On registers per-subscriber handlers that are fanned out on
// every pushed frame.
type Client struct {
	url        string
	token      string
	ackTimeout time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	send      chan Frame
	done      chan struct{}
	handlers  map[*subscription]struct{}
	pending   map[string]chan Ack

	// dropHooks fire once when the read pump exits, so each subscriber can
	// re-sync after a drop. No replay is guaranteed by this layer.
	dropHooks map[*dropHook]struct{}
}

type dropHook struct {
	fn func()
}

func NewClient(url, token string, ackTimeout time.Duration) *Client {
	return &Client{
		url:        url,
		token:      token,
		ackTimeout: ackTimeout,
		handlers:   make(map[*subscription]struct{}),
		pending:    make(map[string]chan Ack),
		dropHooks:  make(map[*dropHook]struct{}),
	}
}

// Connect dials the backend. Idempotent: an already-open connection is reused.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := map[string][]string{}
	if c.token != "" {
		header["Authorization"] = []string{"Bearer " + c.token}
	}

	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return errors.Transport("failed to connect to event channel", err)
	}

	c.conn = conn
	c.connected = true
	c.send = make(chan Frame, 64)
	c.done = make(chan struct{})

	go c.readPump()
	go c.writePump()

	logger.Info("channel: connected to %s", c.url)
	return nil
}

// Close tears the connection down. Pending acks fail with a transport error.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	conn := c.conn
	close(c.done)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	conn.Close()
}

// OnDisconnect registers a re-sync hook invoked after the connection drops
// and returns its cancel function. Hooks compose like event handlers: every
// subscriber keeps its own, and cancelling one never disturbs the others.
func (c *Client) OnDisconnect(fn func()) func() {
	hook := &dropHook{fn: fn}

	c.mu.Lock()
	c.dropHooks[hook] = struct{}{}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.dropHooks, hook)
		c.mu.Unlock()
	}
}

// On subscribes a handler to a pushed event type and returns its cancel
// function. Each subscriber owns its handler independently; cancelling one
// never disturbs the others.
func (c *Client) On(event string, handler Handler) func() {
	sub := &subscription{event: event, handler: handler}

	c.mu.Lock()
	c.handlers[sub] = struct{}{}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, sub)
		c.mu.Unlock()
	}
}

// Emit fires an action without waiting for a result.
func (c *Client) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Internal("failed to encode payload", err)
	}

	return c.enqueue(Frame{Event: event, Data: data})
}

// EmitWithAck fires an action and waits for its one-shot acknowledgement,
// correlated by a generated frame id. A hung ack fails after the configured
// timeout rather than leaving the caller waiting forever.
func (c *Client) EmitWithAck(ctx context.Context, event string, payload interface{}) (Ack, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Ack{}, errors.Internal("failed to encode payload", err)
	}

	id := uuid.NewString()
	ackCh := make(chan Ack, 1)

	c.mu.Lock()
	c.pending[id] = ackCh
	c.mu.Unlock()

	cleanup := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	if err := c.enqueue(Frame{Event: event, ID: id, Data: data}); err != nil {
		cleanup()
		return Ack{}, err
	}

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()

	select {
	case ack, ok := <-ackCh:
		cleanup()
		if !ok {
			return Ack{}, errors.Transport("connection closed before acknowledgement", nil)
		}
		return ack, nil
	case <-timer.C:
		cleanup()
		return Ack{}, errors.AckTimeout(event)
	case <-ctx.Done():
		cleanup()
		return Ack{}, errors.Transport("cancelled while waiting for acknowledgement", ctx.Err())
	}
}

// JoinUserRoom routes per-user pushes to this connection. Safe to call
// repeatedly; the backend treats joins as idempotent.
func (c *Client) JoinUserRoom(userID string) error {
	return c.Emit(ActionJoinUser, JoinUserPayload{UserID: userID})
}

func (c *Client) JoinOrderRoom(orderID int64) error {
	return c.Emit(ActionJoinOrder, JoinOrderPayload{OrderID: orderID})
}

// JoinDirectRoom joins the room for a peer-to-peer conversation. The room
// name is the sorted participant pair, so both peers land in the same room.
func (c *Client) JoinDirectRoom(localUserID, peerID string) error {
	return c.Emit(ActionJoinDirect, JoinDirectPayload{Room: entity.DirectRoom(localUserID, peerID)})
}

func (c *Client) enqueue(frame Frame) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return errors.Transport("event channel is not connected", nil)
	}
	send := c.send
	done := c.done
	c.mu.Unlock()

	select {
	case send <- frame:
		return nil
	case <-done:
		return errors.Transport("event channel closed", nil)
	}
}

func (c *Client) readPump() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	defer c.dropConnection(conn)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("channel: read failed: %v", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Warn("channel: dropping malformed frame: %v", err)
			continue
		}

		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame Frame) {
	// Frames carrying a correlation id resolve a pending ack.
	if frame.ID != "" {
		c.mu.Lock()
		ackCh, ok := c.pending[frame.ID]
		if ok {
			delete(c.pending, frame.ID)
		}
		c.mu.Unlock()

		if ok {
			var ack Ack
			if err := json.Unmarshal(frame.Data, &ack); err != nil {
				ack = Ack{Success: false, Error: "malformed acknowledgement"}
			}
			ackCh <- ack
		}
		return
	}

	c.mu.Lock()
	matched := make([]Handler, 0, len(c.handlers))
	for sub := range c.handlers {
		if sub.event == frame.Event {
			matched = append(matched, sub.handler)
		}
	}
	c.mu.Unlock()

	for _, handler := range matched {
		handler(frame.Data)
	}
}

func (c *Client) writePump() {
	c.mu.Lock()
	conn := c.conn
	send := c.send
	done := c.done
	c.mu.Unlock()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				logger.Warn("channel: write failed: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// dropConnection marks the client disconnected after the read pump exits and
// fails every pending ack. Pushed events stop silently from here on; re-sync
// is the store's responsibility.
func (c *Client) dropConnection(conn *websocket.Conn) {
	c.mu.Lock()
	wasConnected := c.connected && c.conn == conn
	var notify []func()
	if wasConnected {
		c.connected = false
		close(c.done)
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		for hook := range c.dropHooks {
			notify = append(notify, hook.fn)
		}
	}
	c.mu.Unlock()

	conn.Close()

	if wasConnected {
		logger.Warn("channel: disconnected from %s", c.url)
		for _, fn := range notify {
			fn()
		}
	}
}
