package session

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edusuite/chat-bridge/internal/socket"
)

// ErrQueued is returned by Send when the link is down and the frame was
// buffered for replay instead of being emitted.
var ErrQueued = errors.New("send queued until reconnect")

// Transport is the slice of the socket client the manager needs. It is
// injected so the session logic can be exercised without a network.
type Transport interface {
	Connect(ctx context.Context) error
	Close()
	Emit(event string, data interface{}) error
	IsConnected() bool
	On(event string, fn func(json.RawMessage))
	OnConnect(fn func())
	OnDisconnect(fn func(reason string))
}

// Manager owns one transport connection for one authenticated user. It
// keeps the session state that must survive reconnection (the registered
// identity, the joined-room set, and any sends made while offline) and
// replays all of it against every freshly established connection.
type Manager struct {
	transport Transport
	log       zerolog.Logger

	mu     sync.Mutex
	userID string
	rooms  map[string]bool
	queue  []socket.OutboundMessage
	wired  bool

	statusMu sync.RWMutex
	statusFn func(connected bool, reason string)
}

func NewManager(transport Transport, log zerolog.Logger) *Manager {
	return &Manager{
		transport: transport,
		log:       log,
		rooms:     make(map[string]bool),
	}
}

// SetStatusListener registers the callback notified on every connection
// transition. The connected notification fires after session state has been
// replayed.
func (m *Manager) SetStatusListener(fn func(connected bool, reason string)) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.statusFn = fn
}

// OnMessage registers the handler for inbound message broadcasts.
func (m *Manager) OnMessage(fn func(socket.InboundMessage)) {
	m.transport.On(socket.EventMsgReceive, func(data json.RawMessage) {
		var msg socket.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.log.Warn().Err(err).Msg("discarding undecodable message payload")
			return
		}
		fn(msg)
	})
}

// Connect establishes the transport connection. Idempotent: calling it on a
// live session is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if !m.wired {
		m.transport.OnConnect(m.replay)
		m.transport.OnDisconnect(func(reason string) {
			m.notifyStatus(false, reason)
		})
		m.wired = true
	}
	m.mu.Unlock()

	return m.transport.Connect(ctx)
}

// Disconnect tears the transport down. Safe to call multiple times and on a
// session that never connected.
func (m *Manager) Disconnect() {
	m.transport.Close()
	m.notifyStatus(false, "disconnected")
}

// IsConnected reports whether the transport link is up.
func (m *Manager) IsConnected() bool {
	return m.transport.IsConnected()
}

// RegisterSelf records the user identity this session represents and
// announces it to the server. While disconnected the identity is only
// recorded; replay announces it on the next successful connect.
func (m *Manager) RegisterSelf(userID string) {
	m.mu.Lock()
	m.userID = userID
	m.mu.Unlock()

	if !m.transport.IsConnected() {
		m.log.Debug().Str("user", userID).Msg("register deferred until connect")
		return
	}
	if err := m.transport.Emit(socket.EventAddUser, userID); err != nil {
		m.log.Warn().Err(err).Msg("register emit failed, will replay on reconnect")
	}
}

// JoinRoom subscribes the connection to a chat's broadcasts. The room set
// is updated even while disconnected so replay can restore it.
func (m *Manager) JoinRoom(chatID string) {
	m.mu.Lock()
	m.rooms[chatID] = true
	m.mu.Unlock()

	if !m.transport.IsConnected() {
		return
	}
	if err := m.transport.Emit(socket.EventJoinChat, chatID); err != nil {
		m.log.Warn().Err(err).Str("chat", chatID).Msg("join emit failed")
	}
}

// LeaveRoom unsubscribes the connection from a chat's broadcasts.
func (m *Manager) LeaveRoom(chatID string) {
	m.mu.Lock()
	delete(m.rooms, chatID)
	m.mu.Unlock()

	if !m.transport.IsConnected() {
		return
	}
	if err := m.transport.Emit(socket.EventLeaveChat, chatID); err != nil {
		m.log.Warn().Err(err).Str("chat", chatID).Msg("leave emit failed")
	}
}

// Rooms returns the joined-room set in sorted order.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Send emits an outbound message. While disconnected the frame is buffered
// and ErrQueued is returned; buffered frames flush in order on reconnect. A
// user-authored message is never dropped silently.
func (m *Manager) Send(out socket.OutboundMessage) error {
	if !m.transport.IsConnected() {
		m.enqueue(out)
		return ErrQueued
	}
	if err := m.transport.Emit(socket.EventSendMsg, out); err != nil {
		return err
	}
	return nil
}

// QueuedSends returns the number of sends awaiting reconnection.
func (m *Manager) QueuedSends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Manager) enqueue(out socket.OutboundMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, out)
	m.log.Info().Str("chat", out.ChatID).Int("queued", len(m.queue)).
		Msg("buffered send while disconnected")
}

// replay runs on every successful connect: re-announce identity, re-join
// rooms, then flush sends buffered while offline, in original order.
func (m *Manager) replay() {
	m.mu.Lock()
	userID := m.userID
	rooms := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	pending := m.queue
	m.queue = nil
	m.mu.Unlock()

	if userID != "" {
		if err := m.transport.Emit(socket.EventAddUser, userID); err != nil {
			m.log.Warn().Err(err).Msg("identity replay failed")
		}
	}
	for _, room := range rooms {
		if err := m.transport.Emit(socket.EventJoinChat, room); err != nil {
			m.log.Warn().Err(err).Str("chat", room).Msg("room replay failed")
		}
	}

	for i, out := range pending {
		if err := m.transport.Emit(socket.EventSendMsg, out); err != nil {
			// Link dropped mid-flush; keep the rest for the next connect.
			m.mu.Lock()
			m.queue = append(pending[i:], m.queue...)
			m.mu.Unlock()
			break
		}
	}

	m.notifyStatus(true, "")
}

func (m *Manager) notifyStatus(connected bool, reason string) {
	m.statusMu.RLock()
	fn := m.statusFn
	m.statusMu.RUnlock()
	if fn != nil {
		fn(connected, reason)
	}
}
