package store

import (
	"sync"
	"time"

	"github.com/edusuite/chat-bridge/internal/domain"
)

// ReconcileOutcome describes what Reconcile did with an inbound message.
type ReconcileOutcome int

const (
	// OutcomeReplaced means a pending optimistic entry was replaced in place.
	OutcomeReplaced ReconcileOutcome = iota
	// OutcomeAppended means the message was new and appended to the list.
	OutcomeAppended
	// OutcomeDuplicate means the confirmed id was already present; dropped.
	OutcomeDuplicate
	// OutcomeIgnored means the message belongs to a chat other than the
	// current one.
	OutcomeIgnored
)

// MessageStore holds the ordered message list for the currently open chat.
// It is mutated only through the operations below; transport callbacks and
// surface calls interleave, so every operation takes the lock. Entries are
// copied on the way in and out, so no caller ever holds a pointer into the
// guarded list.
//
// The list is append-ordered by arrival and never re-sorted.
type MessageStore struct {
	mu            sync.RWMutex
	currentChatID string
	messages      []*domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

func cloneMessage(msg *domain.Message) *domain.Message {
	clone := *msg
	return &clone
}

// Reset clears the message list and sets the current chat. Called on every
// chat switch, before history is loaded.
func (s *MessageStore) Reset(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentChatID = chatID
	s.messages = nil
}

// CurrentChatID returns the id of the open chat, or "" when none is open.
func (s *MessageStore) CurrentChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentChatID
}

// Populate replaces the list with fetched history for the current chat.
func (s *MessageStore) Populate(msgs []*domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]*domain.Message, len(msgs))
	for i, msg := range msgs {
		s.messages[i] = cloneMessage(msg)
	}
}

// Append adds a message to the end of the list. Used for optimistic inserts.
func (s *MessageStore) Append(msg *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, cloneMessage(msg))
}

// Reconcile folds an inbound confirmed message into the list so that a
// locally typed message appears exactly once regardless of how many echoes
// arrive:
//
//  1. a pending entry with the same correlation id is replaced in place;
//  2. failing that, an echo flagged from-self replaces a pending entry with
//     the same sender and body that still carries a temp id (echoes from the
//     server predate correlation ids);
//  3. a confirmed id already in the list is dropped;
//  4. anything else is appended.
//
// Replacement preserves list position.
func (s *MessageStore) Reconcile(msg *domain.Message) ReconcileOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ChatID != "" && s.currentChatID != "" && msg.ChatID != s.currentChatID {
		return OutcomeIgnored
	}

	if msg.CorrelationID != "" {
		for i, existing := range s.messages {
			// A late echo also revives an entry already marked failed.
			if existing.Status != domain.StatusConfirmed && existing.CorrelationID == msg.CorrelationID {
				s.messages[i] = cloneMessage(msg)
				return OutcomeReplaced
			}
		}
	}

	if msg.FromSelf {
		for i, existing := range s.messages {
			if existing.FromSelf && existing.IsTemp() &&
				existing.Body == msg.Body && existing.Sender.ID == msg.Sender.ID {
				s.messages[i] = cloneMessage(msg)
				return OutcomeReplaced
			}
		}
	}

	for _, existing := range s.messages {
		if existing.ID == msg.ID {
			return OutcomeDuplicate
		}
	}

	s.messages = append(s.messages, cloneMessage(msg))
	return OutcomeAppended
}

// MarkFailed flips the pending entry with the given correlation id to
// failed. Returns the entry, or nil if no such pending entry exists.
func (s *MessageStore) MarkFailed(correlationID string) *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.messages {
		if msg.Status == domain.StatusPending && msg.CorrelationID == correlationID {
			msg.Status = domain.StatusFailed
			return cloneMessage(msg)
		}
	}
	return nil
}

// FailOlderThan marks every pending entry created before cutoff as failed
// and returns them. Drives the send-confirmation timeout.
func (s *MessageStore) FailOlderThan(cutoff time.Time) []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []*domain.Message
	for _, msg := range s.messages {
		if msg.Status == domain.StatusPending && msg.CreatedAt.Before(cutoff) {
			msg.Status = domain.StatusFailed
			failed = append(failed, cloneMessage(msg))
		}
	}
	return failed
}

// Retry flips a failed entry back to pending with a fresh creation time so
// the confirmation timeout restarts. Returns the entry, or nil if no failed
// entry carries the correlation id.
func (s *MessageStore) Retry(correlationID string) *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.messages {
		if msg.Status == domain.StatusFailed && msg.CorrelationID == correlationID {
			msg.Status = domain.StatusPending
			msg.CreatedAt = time.Now()
			return cloneMessage(msg)
		}
	}
	return nil
}

// Messages returns a snapshot of the list in arrival order.
func (s *MessageStore) Messages() []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Message, len(s.messages))
	for i, msg := range s.messages {
		out[i] = cloneMessage(msg)
	}
	return out
}

// Len returns the current list length.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
