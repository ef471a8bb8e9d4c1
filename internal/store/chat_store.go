package store

import (
	"sync"
	"time"

	"github.com/edusuite/chat-bridge/internal/domain"
)

// ChatStore holds the ordered chat list shown by the UI layer. Ordering is
// most-recent-activity first, matching the REST listing. Entries are copied
// on the way in and out, so no caller ever holds a pointer into the guarded
// list.
type ChatStore struct {
	mu    sync.RWMutex
	chats []*domain.Chat
}

func NewChatStore() *ChatStore {
	return &ChatStore{}
}

func cloneChat(chat *domain.Chat) *domain.Chat {
	clone := *chat
	return &clone
}

// SetChats replaces the list with a fresh REST fetch.
func (s *ChatStore) SetChats(chats []*domain.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = make([]*domain.Chat, len(chats))
	for i, chat := range chats {
		s.chats[i] = cloneChat(chat)
	}
}

// Upsert inserts a chat or replaces the entry with the same id.
func (s *ChatStore) Upsert(chat *domain.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.chats {
		if existing.ID == chat.ID {
			s.chats[i] = cloneChat(chat)
			return
		}
	}
	s.chats = append(s.chats, cloneChat(chat))
}

// TouchLastMessage updates a chat's last-message summary when a message
// arrives and moves it to the front of the list. Returns the updated chat,
// or nil when the chat is unknown.
func (s *ChatStore) TouchLastMessage(chatID, text, sender string, at time.Time) *domain.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, chat := range s.chats {
		if chat.ID != chatID {
			continue
		}
		chat.LastMessageText = text
		chat.LastMessageSender = sender
		chat.LastMessageTime = at
		chat.UpdatedAt = at

		copy(s.chats[1:i+1], s.chats[:i])
		s.chats[0] = chat
		return cloneChat(chat)
	}
	return nil
}

// Get returns the chat with the given id, or nil.
func (s *ChatStore) Get(chatID string) *domain.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chat := range s.chats {
		if chat.ID == chatID {
			return cloneChat(chat)
		}
	}
	return nil
}

// Chats returns a snapshot of the list.
func (s *ChatStore) Chats() []*domain.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Chat, len(s.chats))
	for i, chat := range s.chats {
		out[i] = cloneChat(chat)
	}
	return out
}
