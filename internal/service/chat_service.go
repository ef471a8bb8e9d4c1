package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edusuite/chat-bridge/internal/domain"
	"github.com/edusuite/chat-bridge/internal/repository"
	"github.com/edusuite/chat-bridge/internal/session"
	"github.com/edusuite/chat-bridge/internal/socket"
	"github.com/edusuite/chat-bridge/internal/store"
)

// ChatAPI is the slice of the REST client the service depends on.
type ChatAPI interface {
	ListChats(ctx context.Context) ([]*domain.Chat, error)
	CreateChat(ctx context.Context, name string, participantIDs []string, chatType domain.ChatType) (*domain.Chat, error)
	GetMessages(ctx context.Context, chatID, userID string) ([]*domain.Message, error)
	AddMessage(ctx context.Context, chatID, senderID, message string) error
}

type ChatServiceConfig struct {
	UserID      string
	UserName    string
	SendTimeout time.Duration
}

// Status summarizes the session for surfaces.
type Status struct {
	Connected   bool
	UserID      string
	ActiveChat  string
	JoinedRooms []string
	QueuedSends int
}

// ChatService orchestrates the chat session: it owns the active-chat state
// machine, performs optimistic sends, reconciles inbound broadcasts into the
// store, and mirrors confirmed traffic into the local cache.
type ChatService struct {
	session   *session.Manager
	api       ChatAPI
	msgStore  *store.MessageStore
	chatStore *store.ChatStore
	msgRepo   repository.MessageRepository
	chatRepo  repository.ChatRepository
	eventBus  domain.EventBus
	config    ChatServiceConfig
	log       zerolog.Logger

	mu        sync.Mutex
	sweepStop chan struct{}
}

func NewChatService(
	sess *session.Manager,
	api ChatAPI,
	msgStore *store.MessageStore,
	chatStore *store.ChatStore,
	msgRepo repository.MessageRepository,
	chatRepo repository.ChatRepository,
	eventBus domain.EventBus,
	config ChatServiceConfig,
	log zerolog.Logger,
) *ChatService {
	if config.SendTimeout <= 0 {
		config.SendTimeout = 15 * time.Second
	}

	s := &ChatService{
		session:   sess,
		api:       api,
		msgStore:  msgStore,
		chatStore: chatStore,
		msgRepo:   msgRepo,
		chatRepo:  chatRepo,
		eventBus:  eventBus,
		config:    config,
		log:       log,
	}

	sess.OnMessage(s.handleInbound)
	sess.SetStatusListener(func(connected bool, reason string) {
		s.eventBus.Publish(domain.ConnectionStatusEvent{
			Connected: connected,
			Reason:    reason,
			EventTime: time.Now(),
		})
	})

	return s
}

// Connect brings the session up and registers the configured identity.
// Idempotent: a second call on a live session is a no-op.
func (s *ChatService) Connect(ctx context.Context) error {
	if err := s.session.Connect(ctx); err != nil {
		return err
	}
	s.session.RegisterSelf(s.config.UserID)
	s.startSweeper()
	return nil
}

// Disconnect leaves the active room and tears the session down. Safe to
// call multiple times.
func (s *ChatService) Disconnect() {
	if current := s.msgStore.CurrentChatID(); current != "" {
		s.session.LeaveRoom(current)
		s.msgStore.Reset("")
	}
	s.stopSweeper()
	s.session.Disconnect()
}

// IsConnected reports whether the transport link is up.
func (s *ChatService) IsConnected() bool {
	return s.session.IsConnected()
}

// Status returns a snapshot of the session state.
func (s *ChatService) Status() Status {
	return Status{
		Connected:   s.session.IsConnected(),
		UserID:      s.config.UserID,
		ActiveChat:  s.msgStore.CurrentChatID(),
		JoinedRooms: s.session.Rooms(),
		QueuedSends: s.session.QueuedSends(),
	}
}

// OpenChat makes chatID the active chat: leave the previous room, clear the
// message list, load history, join the new room. Exactly one leave and one
// join per switch; reopening the already-active chat reloads history without
// touching the room subscription.
func (s *ChatService) OpenChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.msgStore.CurrentChatID()
	switching := prev != chatID
	if prev != "" && switching {
		s.session.LeaveRoom(prev)
	}
	s.msgStore.Reset(chatID)

	history, err := s.api.GetMessages(ctx, chatID, s.config.UserID)
	if err != nil {
		cached, cacheErr := s.msgRepo.GetByChatID(ctx, chatID, 0, 0)
		if cacheErr != nil || len(cached) == 0 {
			// Join anyway so live messages still flow into the empty list.
			if switching {
				s.session.JoinRoom(chatID)
			}
			return fmt.Errorf("load history for chat %s: %w", chatID, err)
		}
		s.log.Warn().Err(err).Str("chat", chatID).Msg("history fetch failed, serving cache")
		history = cached
	} else {
		s.cacheHistory(ctx, history)
	}

	s.msgStore.Populate(history)
	if switching {
		s.session.JoinRoom(chatID)
	}

	s.eventBus.Publish(domain.ChatOpenedEvent{ChatID: chatID, EventTime: time.Now()})
	return nil
}

// CloseChat leaves the active room without tearing the session down.
func (s *ChatService) CloseChat() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.msgStore.CurrentChatID(); current != "" {
		s.session.LeaveRoom(current)
	}
	s.msgStore.Reset("")
}

// SendText performs an optimistic send into the active chat: the entry is
// appended to the local list and the input can clear before any network
// round trip. The echo carrying the correlation id confirms it later.
func (s *ChatService) SendText(ctx context.Context, body string) (*domain.Message, error) {
	chatID := s.msgStore.CurrentChatID()
	if chatID == "" {
		return nil, fmt.Errorf("no chat is open")
	}
	if body == "" {
		return nil, fmt.Errorf("message body is empty")
	}

	msg := domain.NewOptimisticMessage(chatID, domain.UserRef{ID: s.config.UserID, Name: s.config.UserName}, body)
	s.msgStore.Append(msg)
	s.eventBus.Publish(domain.MessageSentEvent{Message: msg, EventTime: time.Now()})

	err := s.session.Send(socket.OutboundMessage{
		ChatID:        chatID,
		SenderID:      s.config.UserID,
		Message:       body,
		CorrelationID: msg.CorrelationID,
	})
	switch {
	case err == nil:
	case errors.Is(err, session.ErrQueued):
		s.log.Info().Str("chat", chatID).Msg("send buffered until reconnect")
	default:
		// The socket write failed outright; fall back to the REST path. The
		// entry stays pending either way until an echo or the timeout.
		s.log.Warn().Err(err).Str("chat", chatID).Msg("socket send failed, trying REST fallback")
		if rerr := s.api.AddMessage(ctx, chatID, s.config.UserID, body); rerr != nil {
			s.log.Warn().Err(rerr).Str("chat", chatID).Msg("REST fallback failed")
		}
	}

	return msg, nil
}

// RetrySend re-sends a message that was marked failed.
func (s *ChatService) RetrySend(correlationID string) (*domain.Message, error) {
	msg := s.msgStore.Retry(correlationID)
	if msg == nil {
		return nil, fmt.Errorf("no failed message with correlation id %s", correlationID)
	}

	err := s.session.Send(socket.OutboundMessage{
		ChatID:        msg.ChatID,
		SenderID:      msg.Sender.ID,
		Message:       msg.Body,
		CorrelationID: msg.CorrelationID,
	})
	if err != nil && !errors.Is(err, session.ErrQueued) {
		s.log.Warn().Err(err).Msg("retry emit failed")
	}
	return msg, nil
}

// Messages returns the active chat's message list in arrival order.
func (s *ChatService) Messages() []*domain.Message {
	return s.msgStore.Messages()
}

// ListChats fetches the chat list, falling back to the local cache when the
// REST call fails.
func (s *ChatService) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	chats, err := s.api.ListChats(ctx)
	if err != nil {
		cached, cacheErr := s.chatRepo.GetAll(ctx, 0, 0)
		if cacheErr != nil || len(cached) == 0 {
			return nil, fmt.Errorf("list chats: %w", err)
		}
		s.log.Warn().Err(err).Msg("chat list fetch failed, serving cache")
		s.chatStore.SetChats(cached)
		return cached, nil
	}

	s.chatStore.SetChats(chats)
	for _, chat := range chats {
		if err := s.chatRepo.Upsert(ctx, chat); err != nil {
			s.log.Warn().Err(err).Str("chat", chat.ID).Msg("failed to cache chat")
		}
	}
	return chats, nil
}

// CreateChat creates a chat via REST and caches it.
func (s *ChatService) CreateChat(ctx context.Context, name string, participantIDs []string, chatType domain.ChatType) (*domain.Chat, error) {
	chat, err := s.api.CreateChat(ctx, name, participantIDs, chatType)
	if err != nil {
		return nil, err
	}

	s.chatStore.Upsert(chat)
	if err := s.chatRepo.Upsert(ctx, chat); err != nil {
		s.log.Warn().Err(err).Str("chat", chat.ID).Msg("failed to cache chat")
	}
	return chat, nil
}

// GetEventBus returns the bus surfaces subscribe to.
func (s *ChatService) GetEventBus() domain.EventBus {
	return s.eventBus
}

// handleInbound runs on the transport read goroutine for every msg-recieve
// broadcast.
func (s *ChatService) handleInbound(in socket.InboundMessage) {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	msg := &domain.Message{
		ID:            in.ID,
		ChatID:        in.ChatID,
		Sender:        domain.UserRef{ID: in.Sender.ID, Name: in.Sender.Name},
		Body:          domain.NormalizeBody(in.Message),
		Kind:          domain.MessageKindText,
		CreatedAt:     createdAt,
		FromSelf:      in.FromSelf || in.Sender.ID == s.config.UserID,
		CorrelationID: in.CorrelationID,
		Status:        domain.StatusConfirmed,
	}

	outcome := s.msgStore.Reconcile(msg)

	ctx := context.Background()
	if err := s.msgRepo.CreateOrIgnore(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("id", msg.ID).Msg("failed to cache message")
	}

	sender := msg.Sender.Name
	if msg.FromSelf {
		sender = "me"
	}
	if err := s.chatRepo.UpdateLastMessage(ctx, msg.ChatID, msg.Body, sender, msg.CreatedAt); err != nil {
		s.log.Warn().Err(err).Str("chat", msg.ChatID).Msg("failed to update chat summary")
	}
	if chat := s.chatStore.TouchLastMessage(msg.ChatID, msg.Body, sender, msg.CreatedAt); chat != nil {
		s.eventBus.Publish(domain.ChatUpdatedEvent{Chat: chat, EventTime: time.Now()})
	}

	switch outcome {
	case store.OutcomeReplaced:
		s.eventBus.Publish(domain.MessageConfirmedEvent{Message: msg, EventTime: time.Now()})
	case store.OutcomeAppended, store.OutcomeIgnored:
		s.eventBus.Publish(domain.MessageReceivedEvent{Message: msg, EventTime: time.Now()})
	case store.OutcomeDuplicate:
		// Redundant echo; nothing to announce.
	}
}

// startSweeper launches the loop that fails optimistic entries whose
// confirmation never arrived within the send timeout.
func (s *ChatService) startSweeper() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sweepStop != nil {
		return
	}
	stop := make(chan struct{})
	s.sweepStop = stop

	interval := s.config.SendTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-s.config.SendTimeout)
				for _, msg := range s.msgStore.FailOlderThan(cutoff) {
					s.log.Warn().Str("chat", msg.ChatID).Str("correlation", msg.CorrelationID).
						Msg("send not confirmed in time")
					s.eventBus.Publish(domain.MessageFailedEvent{Message: msg, EventTime: time.Now()})
				}
			}
		}
	}()
}

func (s *ChatService) stopSweeper() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sweepStop != nil {
		close(s.sweepStop)
		s.sweepStop = nil
	}
}

func (s *ChatService) cacheHistory(ctx context.Context, history []*domain.Message) {
	for _, msg := range history {
		if msg.IsTemp() {
			continue
		}
		if err := s.msgRepo.CreateOrIgnore(ctx, msg); err != nil {
			s.log.Warn().Err(err).Str("id", msg.ID).Msg("failed to cache history message")
			return
		}
	}
}
