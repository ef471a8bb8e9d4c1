package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/chat-bridge/internal/domain"
	"github.com/edusuite/chat-bridge/internal/session"
	"github.com/edusuite/chat-bridge/internal/socket"
	"github.com/edusuite/chat-bridge/internal/store"
)

type emitRecord struct {
	event string
	data  interface{}
}

// fakeLink implements session.Transport in memory.
type fakeLink struct {
	mu        sync.Mutex
	connected bool
	emits     []emitRecord

	handlers  map[string]func(json.RawMessage)
	onConnect func()
}

func newFakeLink() *fakeLink {
	return &fakeLink{handlers: make(map[string]func(json.RawMessage))}
}

func (f *fakeLink) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	onConnect := f.onConnect
	f.mu.Unlock()
	if onConnect != nil {
		onConnect()
	}
	return nil
}

func (f *fakeLink) Close() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeLink) Emit(event string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emitRecord{event: event, data: data})
	return nil
}

func (f *fakeLink) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLink) On(event string, fn func(json.RawMessage)) { f.handlers[event] = fn }
func (f *fakeLink) OnConnect(fn func())                       { f.onConnect = fn }
func (f *fakeLink) OnDisconnect(fn func(reason string))       {}

func (f *fakeLink) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakeLink) recorded() []emitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emitRecord, len(f.emits))
	copy(out, f.emits)
	return out
}

func (f *fakeLink) clear() {
	f.mu.Lock()
	f.emits = nil
	f.mu.Unlock()
}

// deliver pushes a wire broadcast through the registered handler, as the
// read loop would.
func (f *fakeLink) deliver(t *testing.T, msg socket.InboundMessage) {
	t.Helper()
	handler := f.handlers[socket.EventMsgReceive]
	require.NotNil(t, handler, "no broadcast handler registered")
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	handler(payload)
}

type fakeAPI struct {
	mu          sync.Mutex
	chats       []*domain.Chat
	history     map[string][]*domain.Message
	listErr     error
	historyErr  error
	addCalls    []string
	addTargets  []string
	createCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{history: make(map[string][]*domain.Message)}
}

func (f *fakeAPI) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.chats, nil
}

func (f *fakeAPI) CreateChat(ctx context.Context, name string, participantIDs []string, chatType domain.ChatType) (*domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	chat := &domain.Chat{ID: fmt.Sprintf("chat-new-%d", f.createCalls), Name: name, Type: chatType}
	f.chats = append(f.chats, chat)
	return chat, nil
}

func (f *fakeAPI) GetMessages(ctx context.Context, chatID, userID string) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[chatID], nil
}

func (f *fakeAPI) AddMessage(ctx context.Context, chatID, senderID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls = append(f.addCalls, message)
	f.addTargets = append(f.addTargets, chatID)
	return nil
}

func (f *fakeAPI) addCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.addCalls)
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	msgs map[string]*domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{msgs: make(map[string]*domain.Message)}
}

func (r *fakeMessageRepo) CreateOrIgnore(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.msgs[msg.ID]; !ok {
		r.msgs[msg.ID] = msg
	}
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[id], nil
}

func (r *fakeMessageRepo) GetByChatID(ctx context.Context, chatID string, limit, offset int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, msg := range r.msgs {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	return nil, nil
}

func (r *fakeMessageRepo) DeleteByChatID(ctx context.Context, chatID string) error { return nil }

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type fakeChatRepo struct {
	mu    sync.Mutex
	chats map[string]*domain.Chat
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: make(map[string]*domain.Chat)}
}

func (r *fakeChatRepo) Upsert(ctx context.Context, chat *domain.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chat.ID] = chat
	return nil
}

func (r *fakeChatRepo) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chats[id], nil
}

func (r *fakeChatRepo) GetAll(ctx context.Context, limit, offset int) ([]*domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Chat
	for _, chat := range r.chats {
		out = append(out, chat)
	}
	return out, nil
}

func (r *fakeChatRepo) UpdateLastMessage(ctx context.Context, id, text, sender string, timestamp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chat, ok := r.chats[id]; ok {
		chat.LastMessageText = text
		chat.LastMessageSender = sender
		chat.LastMessageTime = timestamp
	}
	return nil
}

func (r *fakeChatRepo) Delete(ctx context.Context, id string) error { return nil }

type testHarness struct {
	svc      *ChatService
	link     *fakeLink
	api      *fakeAPI
	msgRepo  *fakeMessageRepo
	chatRepo *fakeChatRepo
	bus      domain.EventBus
}

func newTestService(t *testing.T) *testHarness {
	t.Helper()

	link := newFakeLink()
	api := newFakeAPI()
	msgRepo := newFakeMessageRepo()
	chatRepo := newFakeChatRepo()
	bus := domain.NewEventBus()

	sess := session.NewManager(link, zerolog.Nop())
	svc := NewChatService(
		sess,
		api,
		store.NewMessageStore(),
		store.NewChatStore(),
		msgRepo,
		chatRepo,
		bus,
		ChatServiceConfig{UserID: "u-me", UserName: "Sam", SendTimeout: time.Minute},
		zerolog.Nop(),
	)
	t.Cleanup(svc.Disconnect)

	return &testHarness{svc: svc, link: link, api: api, msgRepo: msgRepo, chatRepo: chatRepo, bus: bus}
}

func TestFreshSessionFlow(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Connect(ctx))
	assert.True(t, h.svc.IsConnected())

	st := h.svc.Status()
	assert.Equal(t, "u-me", st.UserID)
	assert.Empty(t, st.ActiveChat)

	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))
	assert.Empty(t, h.svc.Messages())
	assert.Equal(t, "chat-1", h.svc.Status().ActiveChat)
	assert.Equal(t, []string{"chat-1"}, h.svc.Status().JoinedRooms)
}

func TestSendTextRoundTrip(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))
	h.link.clear()

	sent, err := h.svc.SendText(ctx, "hi")
	require.NoError(t, err)
	assert.True(t, sent.IsTemp())
	assert.Equal(t, domain.StatusPending, sent.Status)

	// Optimistic entry is visible before any confirmation.
	msgs := h.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Body)

	emits := h.link.recorded()
	require.Len(t, emits, 1)
	assert.Equal(t, socket.EventSendMsg, emits[0].event)
	out := emits[0].data.(socket.OutboundMessage)
	assert.Equal(t, sent.CorrelationID, out.CorrelationID)

	// Server echo arrives with the correlation id.
	h.link.deliver(t, socket.InboundMessage{
		ID:            "srv-1",
		ChatID:        "chat-1",
		Sender:        socket.WireSender{ID: "u-me", Name: "Sam"},
		Message:       json.RawMessage(`"hi"`),
		FromSelf:      true,
		CorrelationID: sent.CorrelationID,
	})

	msgs = h.svc.Messages()
	require.Len(t, msgs, 1, "echo must replace, not duplicate")
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.Equal(t, domain.StatusConfirmed, msgs[0].Status)

	// Confirmed message lands in the cache.
	cached, err := h.msgRepo.GetByID(context.Background(), "srv-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
}

func TestSendTextRequiresOpenChat(t *testing.T) {
	h := newTestService(t)
	require.NoError(t, h.svc.Connect(context.Background()))

	_, err := h.svc.SendText(context.Background(), "hi")
	assert.Error(t, err)

	require.NoError(t, h.svc.OpenChat(context.Background(), "chat-1"))
	_, err = h.svc.SendText(context.Background(), "")
	assert.Error(t, err)
}

func TestSendWhileDisconnectedQueues(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))

	h.link.setConnected(false)

	sent, err := h.svc.SendText(ctx, "offline message")
	require.NoError(t, err, "queued send is not a user-facing error")
	assert.Equal(t, domain.StatusPending, sent.Status)
	assert.Equal(t, 1, h.svc.Status().QueuedSends)

	// Queued, so no REST fallback fired.
	assert.Equal(t, 0, h.api.addCount())

	// Reconnect flushes the queue.
	h.link.clear()
	require.NoError(t, h.link.Connect(ctx))
	assert.Equal(t, 0, h.svc.Status().QueuedSends)

	var flushed bool
	for _, e := range h.link.recorded() {
		if e.event == socket.EventSendMsg {
			out := e.data.(socket.OutboundMessage)
			assert.Equal(t, sent.CorrelationID, out.CorrelationID)
			flushed = true
		}
	}
	assert.True(t, flushed, "queued send not replayed")
}

func TestOpenChatSwitchesRooms(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))
	h.link.clear()

	require.NoError(t, h.svc.OpenChat(ctx, "chat-2"))

	emits := h.link.recorded()
	require.Len(t, emits, 2, "exactly one leave and one join per switch")
	assert.Equal(t, socket.EventLeaveChat, emits[0].event)
	assert.Equal(t, "chat-1", emits[0].data)
	assert.Equal(t, socket.EventJoinChat, emits[1].event)
	assert.Equal(t, "chat-2", emits[1].data)

	assert.Equal(t, []string{"chat-2"}, h.svc.Status().JoinedRooms)
	assert.Empty(t, h.svc.Messages(), "switch must clear the previous chat's list")
}

func TestReopenActiveChatKeepsSubscription(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	h.api.history["chat-1"] = []*domain.Message{
		{ID: "srv-1", ChatID: "chat-1", Body: "hello", Status: domain.StatusConfirmed},
	}

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))
	h.link.clear()

	// Reopening the active chat reloads history but must not leave or
	// re-join its own room.
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))

	for _, emit := range h.link.recorded() {
		assert.NotEqual(t, socket.EventLeaveChat, emit.event, "reopen must not leave the active room")
		assert.NotEqual(t, socket.EventJoinChat, emit.event, "reopen must not re-join the active room")
	}
	assert.Equal(t, []string{"chat-1"}, h.svc.Status().JoinedRooms)
	require.Len(t, h.svc.Messages(), 1)
}

func TestOpenChatLoadsHistory(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	h.api.history["chat-1"] = []*domain.Message{
		{ID: "srv-1", ChatID: "chat-1", Body: "older", Status: domain.StatusConfirmed},
		{ID: "srv-2", ChatID: "chat-1", Body: "newer", Status: domain.StatusConfirmed},
	}

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))

	msgs := h.svc.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "older", msgs[0].Body)

	// History lands in the cache for offline fallback.
	assert.Equal(t, 2, h.msgRepo.count())
}

func TestOpenChatHistoryFailureServesCache(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.msgRepo.CreateOrIgnore(ctx, &domain.Message{
		ID: "srv-1", ChatID: "chat-1", Body: "cached", Status: domain.StatusConfirmed,
	}))
	h.api.historyErr = errors.New("server down")

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))

	msgs := h.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "cached", msgs[0].Body)
	assert.Equal(t, []string{"chat-1"}, h.svc.Status().JoinedRooms)
}

func TestOpenChatHistoryFailureStillJoins(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	h.api.historyErr = errors.New("server down")

	require.NoError(t, h.svc.Connect(ctx))
	err := h.svc.OpenChat(ctx, "chat-1")
	require.Error(t, err)

	// The room is joined anyway so live messages flow into the empty list.
	assert.Equal(t, []string{"chat-1"}, h.svc.Status().JoinedRooms)
	assert.Equal(t, "chat-1", h.svc.Status().ActiveChat)
}

func TestInboundBroadcastAppends(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))

	events := h.bus.Subscribe([]domain.EventType{domain.EventTypeMessageReceived})
	defer h.bus.Unsubscribe(events)

	h.link.deliver(t, socket.InboundMessage{
		ID:      "srv-1",
		ChatID:  "chat-1",
		Sender:  socket.WireSender{ID: "u-alice", Name: "Alice"},
		Message: json.RawMessage(`"hello"`),
	})

	msgs := h.svc.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Body)
	assert.False(t, msgs[0].FromSelf)

	select {
	case evt := <-events:
		received := evt.(domain.MessageReceivedEvent)
		assert.Equal(t, "srv-1", received.Message.ID)
	default:
		t.Fatal("no message.received event published")
	}
}

func TestInboundSelfEchoWithoutCorrelationID(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))

	_, err := h.svc.SendText(ctx, "hi")
	require.NoError(t, err)

	// Echo where the server dropped the correlation id but flags fromSelf.
	h.link.deliver(t, socket.InboundMessage{
		ID:       "srv-1",
		ChatID:   "chat-1",
		Sender:   socket.WireSender{ID: "u-me", Name: "Sam"},
		Message:  json.RawMessage(`"hi"`),
		FromSelf: true,
	})

	msgs := h.svc.Messages()
	require.Len(t, msgs, 1, "fallback match must replace the optimistic entry")
	assert.Equal(t, "srv-1", msgs[0].ID)
}

func TestRetrySend(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))

	sent, err := h.svc.SendText(ctx, "hi")
	require.NoError(t, err)

	_, err = h.svc.RetrySend(sent.CorrelationID)
	assert.Error(t, err, "retry of a non-failed message must fail")

	// Simulate the confirmation timeout.
	h.svc.msgStore.FailOlderThan(time.Now().Add(time.Second))

	h.link.clear()
	msg, err := h.svc.RetrySend(sent.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, msg.Status)

	emits := h.link.recorded()
	require.Len(t, emits, 1)
	assert.Equal(t, socket.EventSendMsg, emits[0].event)
}

func TestListChatsFallsBackToCache(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.chatRepo.Upsert(ctx, &domain.Chat{ID: "chat-1", Name: "Cached", Type: domain.ChatTypeGroup}))
	h.api.listErr = errors.New("server down")

	chats, err := h.svc.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Cached", chats[0].Name)

	// Empty cache propagates the upstream error.
	h2 := newTestService(t)
	h2.api.listErr = errors.New("server down")
	_, err = h2.svc.ListChats(ctx)
	assert.Error(t, err)
}

func TestListChatsCachesResults(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	h.api.chats = []*domain.Chat{{ID: "chat-1", Name: "Math 101", Type: domain.ChatTypeGroup}}

	chats, err := h.svc.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	cached, err := h.chatRepo.GetByID(ctx, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "Math 101", cached.Name)
}

func TestDisconnectLeavesActiveRoom(t *testing.T) {
	h := newTestService(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Connect(ctx))
	require.NoError(t, h.svc.OpenChat(ctx, "chat-1"))
	h.link.clear()

	h.svc.Disconnect()

	emits := h.link.recorded()
	require.NotEmpty(t, emits)
	assert.Equal(t, socket.EventLeaveChat, emits[0].event)
	assert.False(t, h.svc.IsConnected())
	assert.Empty(t, h.svc.Status().ActiveChat)
}
