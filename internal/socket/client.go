package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	reconnectBase = time.Second
	reconnectCap  = 30 * time.Second
)

// Client is a websocket event-frame client for the chat server. It keeps
// exactly one live connection, dispatches inbound frames to registered
// handlers, and reconnects with exponential backoff when the link drops.
//
// Connection errors never propagate to callers of Emit or the handlers;
// they only flip the connected state and fire the disconnect hook.
type Client struct {
	url string
	log zerolog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	writeMu sync.Mutex

	handlerMu    sync.RWMutex
	handlers     map[string]func(json.RawMessage)
	onConnect    func()
	onDisconnect func(reason string)
}

// NewClient builds a client for the given endpoint. http/https schemes are
// rewritten to ws/wss; an endpoint without a path gets the server's /ws
// mount point.
func NewClient(endpoint string, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid socket endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported socket scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	return &Client{
		url:      u.String(),
		log:      log,
		handlers: make(map[string]func(json.RawMessage)),
	}, nil
}

// On registers a handler for an inbound event. Handlers run on the read
// goroutine; they must not block.
func (c *Client) On(event string, fn func(json.RawMessage)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[event] = fn
}

// OnConnect registers a hook fired after every successful dial, including
// reconnects. Session state replay hangs off this hook.
func (c *Client) OnConnect(fn func()) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onConnect = fn
}

// OnDisconnect registers a hook fired whenever the link drops.
func (c *Client) OnDisconnect(fn func(reason string)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onDisconnect = fn
}

// Connect dials the endpoint. Idempotent on a live connection. A closed
// client is re-armed, so surfaces can toggle disconnect and connect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.closed = false
	c.mu.Unlock()
	return c.dial(ctx)
}

// dial performs the connection attempt. Unlike Connect it refuses a closed
// client; that is what stops the background reconnect loop at Close.
func (c *Client) dial(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.pingLoop(conn)

	c.handlerMu.RLock()
	hook := c.onConnect
	c.handlerMu.RUnlock()
	if hook != nil {
		hook()
	}
	return nil
}

// IsConnected reports whether the link is currently up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Emit sends an event frame. Returns an error when the link is down; the
// caller decides whether to queue or drop.
func (c *Client) Emit(event string, data interface{}) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return fmt.Errorf("emit %s: not connected", event)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Close tears the connection down and stops background reconnection until
// the next explicit Connect. Safe to call multiple times and on a client
// that never connected.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn().Err(err).Msg("discarding malformed frame")
			continue
		}

		c.handlerMu.RLock()
		fn := c.handlers[frame.Event]
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(frame.Data)
		} else {
			c.log.Debug().Str("event", frame.Event).Msg("no handler for event")
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.RLock()
		current := c.conn
		c.mu.RUnlock()
		if current != conn {
			return
		}

		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// handleDrop flips state after a read failure and kicks off reconnection
// unless the client was closed deliberately.
func (c *Client) handleDrop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection already superseded this one.
		c.mu.Unlock()
		return
	}
	c.conn.Close()
	c.conn = nil
	c.connected = false
	closed := c.closed
	c.mu.Unlock()

	c.handlerMu.RLock()
	hook := c.onDisconnect
	c.handlerMu.RUnlock()
	if hook != nil {
		hook(cause.Error())
	}

	if closed {
		return
	}

	c.log.Warn().Err(cause).Msg("connection lost, reconnecting")
	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	backoff := reconnectBase
	for {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		if err := c.dial(context.Background()); err == nil {
			c.log.Info().Msg("reconnected")
			return
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > reconnectCap {
			backoff = reconnectCap
		}
	}
}
