package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/chat-bridge/internal/domain"
	"github.com/edusuite/chat-bridge/internal/service"
	"github.com/edusuite/chat-bridge/internal/session"
	"github.com/edusuite/chat-bridge/internal/store"
)

type stubLink struct {
	mu        sync.Mutex
	connected bool
	handlers  map[string]func(json.RawMessage)
	onConnect func()
}

func newStubLink() *stubLink {
	return &stubLink{handlers: make(map[string]func(json.RawMessage))}
}

func (s *stubLink) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.connected = true
	onConnect := s.onConnect
	s.mu.Unlock()
	if onConnect != nil {
		onConnect()
	}
	return nil
}

func (s *stubLink) Close() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *stubLink) Emit(event string, data interface{}) error { return nil }

func (s *stubLink) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubLink) On(event string, fn func(json.RawMessage)) { s.handlers[event] = fn }
func (s *stubLink) OnConnect(fn func())                       { s.onConnect = fn }
func (s *stubLink) OnDisconnect(fn func(reason string))       {}

type stubAPI struct {
	history map[string][]*domain.Message
	chats   []*domain.Chat
}

func (a *stubAPI) ListChats(ctx context.Context) ([]*domain.Chat, error) { return a.chats, nil }

func (a *stubAPI) CreateChat(ctx context.Context, name string, participantIDs []string, chatType domain.ChatType) (*domain.Chat, error) {
	return &domain.Chat{ID: "chat-new", Name: name, Type: chatType}, nil
}

func (a *stubAPI) GetMessages(ctx context.Context, chatID, userID string) ([]*domain.Message, error) {
	return a.history[chatID], nil
}

func (a *stubAPI) AddMessage(ctx context.Context, chatID, senderID, message string) error {
	return nil
}

type stubMsgRepo struct{}

func (stubMsgRepo) CreateOrIgnore(ctx context.Context, msg *domain.Message) error { return nil }
func (stubMsgRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	return nil, nil
}
func (stubMsgRepo) GetByChatID(ctx context.Context, chatID string, limit, offset int) ([]*domain.Message, error) {
	return []*domain.Message{
		{ID: "srv-1", ChatID: chatID, Body: "cached", Status: domain.StatusConfirmed, CreatedAt: time.Now()},
	}, nil
}
func (stubMsgRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	return nil, nil
}
func (stubMsgRepo) DeleteByChatID(ctx context.Context, chatID string) error { return nil }

type stubChatRepo struct{}

func (stubChatRepo) Upsert(ctx context.Context, chat *domain.Chat) error          { return nil }
func (stubChatRepo) GetByID(ctx context.Context, id string) (*domain.Chat, error) { return nil, nil }
func (stubChatRepo) GetAll(ctx context.Context, limit, offset int) ([]*domain.Chat, error) {
	return nil, nil
}
func (stubChatRepo) UpdateLastMessage(ctx context.Context, id, text, sender string, timestamp time.Time) error {
	return nil
}
func (stubChatRepo) Delete(ctx context.Context, id string) error { return nil }

func newTestServer(t *testing.T, api *stubAPI) *Server {
	t.Helper()

	sess := session.NewManager(newStubLink(), zerolog.Nop())
	chatSvc := service.NewChatService(
		sess,
		api,
		store.NewMessageStore(),
		store.NewChatStore(),
		stubMsgRepo{},
		stubChatRepo{},
		domain.NewEventBus(),
		service.ChatServiceConfig{UserID: "u-me", UserName: "Sam", SendTimeout: time.Minute},
		zerolog.Nop(),
	)
	t.Cleanup(chatSvc.Disconnect)
	require.NoError(t, chatSvc.Connect(context.Background()))

	histSvc := service.NewHistoryService(stubMsgRepo{}, stubChatRepo{})

	return NewServer(chatSvc, histSvc, ServerConfig{Address: "127.0.0.1:0"}, zerolog.Nop())
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubAPI{})

	req := httptest.NewRequest("GET", "/api/status", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var status StatusInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Connected)
	assert.Equal(t, "u-me", status.UserID)
}

func TestListChatsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubAPI{chats: []*domain.Chat{
		{ID: "chat-1", Name: "Math 101", Type: domain.ChatTypeGroup},
	}})

	req := httptest.NewRequest("GET", "/api/chats", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Chats []ChatInfo `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Chats, 1)
	assert.Equal(t, "Math 101", body.Chats[0].Name)
}

func TestOpenChatAndSend(t *testing.T) {
	srv := newTestServer(t, &stubAPI{history: map[string][]*domain.Message{}})

	req := httptest.NewRequest("POST", "/api/chats/chat-1/open", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/messages", strings.NewReader(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 202, resp.StatusCode)

	var body struct {
		Message MessageInfo `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "hi", body.Message.Body)
	assert.Equal(t, "pending", body.Message.Status)
	assert.NotEmpty(t, body.Message.CorrelationID)
}

func TestSendWithoutOpenChatFails(t *testing.T) {
	srv := newTestServer(t, &stubAPI{})

	req := httptest.NewRequest("POST", "/api/messages", strings.NewReader(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestChatHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubAPI{})

	req := httptest.NewRequest("GET", "/api/chats/chat-1/messages", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Messages []MessageInfo `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "cached", body.Messages[0].Body)
}

func TestCreateChatValidation(t *testing.T) {
	srv := newTestServer(t, &stubAPI{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "valid", body: `{"name": "Club", "participantIds": ["u-1"], "type": "group"}`, code: 201},
		{name: "missing participants", body: `{"name": "Club", "type": "group"}`, code: 400},
		{name: "bad type", body: `{"participantIds": ["u-1"], "type": "broadcast"}`, code: 400},
		{name: "malformed body", body: `{`, code: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/chats", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := srv.App().Test(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestRetryUnknownCorrelationID(t *testing.T) {
	srv := newTestServer(t, &stubAPI{})

	req := httptest.NewRequest("POST", "/api/messages/retry", strings.NewReader(`{"correlationId": "nope"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}
