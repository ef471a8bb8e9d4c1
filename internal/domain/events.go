package domain

import (
	"sync"
	"time"
)

type EventType string

const (
	EventTypeMessageReceived  EventType = "message.received"
	EventTypeMessageSent      EventType = "message.sent"
	EventTypeMessageConfirmed EventType = "message.confirmed"
	EventTypeMessageFailed    EventType = "message.failed"
	EventTypeChatUpdated      EventType = "chat.updated"
	EventTypeChatOpened       EventType = "chat.opened"
	EventTypeConnectionStatus EventType = "connection.status"
)

type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// MessageReceivedEvent fires for every inbound message that originated
// outside this session.
type MessageReceivedEvent struct {
	Message   *Message
	EventTime time.Time
}

func (e MessageReceivedEvent) Type() EventType      { return EventTypeMessageReceived }
func (e MessageReceivedEvent) Timestamp() time.Time { return e.EventTime }

// MessageSentEvent fires when an optimistic entry is inserted locally,
// before any server confirmation.
type MessageSentEvent struct {
	Message   *Message
	EventTime time.Time
}

func (e MessageSentEvent) Type() EventType      { return EventTypeMessageSent }
func (e MessageSentEvent) Timestamp() time.Time { return e.EventTime }

// MessageConfirmedEvent fires when a server echo replaces a pending
// optimistic entry.
type MessageConfirmedEvent struct {
	Message   *Message
	EventTime time.Time
}

func (e MessageConfirmedEvent) Type() EventType      { return EventTypeMessageConfirmed }
func (e MessageConfirmedEvent) Timestamp() time.Time { return e.EventTime }

// MessageFailedEvent fires when a pending send exceeds the confirmation
// timeout.
type MessageFailedEvent struct {
	Message   *Message
	EventTime time.Time
}

func (e MessageFailedEvent) Type() EventType      { return EventTypeMessageFailed }
func (e MessageFailedEvent) Timestamp() time.Time { return e.EventTime }

type ChatUpdatedEvent struct {
	Chat      *Chat
	EventTime time.Time
}

func (e ChatUpdatedEvent) Type() EventType      { return EventTypeChatUpdated }
func (e ChatUpdatedEvent) Timestamp() time.Time { return e.EventTime }

// ChatOpenedEvent fires after the active chat switches and its history has
// been loaded.
type ChatOpenedEvent struct {
	ChatID    string
	EventTime time.Time
}

func (e ChatOpenedEvent) Type() EventType      { return EventTypeChatOpened }
func (e ChatOpenedEvent) Timestamp() time.Time { return e.EventTime }

type ConnectionStatusEvent struct {
	Connected bool
	Reason    string
	EventTime time.Time
}

func (e ConnectionStatusEvent) Type() EventType      { return EventTypeConnectionStatus }
func (e ConnectionStatusEvent) Timestamp() time.Time { return e.EventTime }

// EventBus provides pub/sub for domain events
type EventBus interface {
	Publish(event Event)
	Subscribe(eventTypes []EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
}

// SimpleEventBus is a basic in-memory implementation of EventBus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]subscription
}

type subscription struct {
	ch         chan Event
	eventTypes map[EventType]bool
}

func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make(map[<-chan Event]subscription),
	}
}

func (b *SimpleEventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.eventTypes) == 0 || sub.eventTypes[event.Type()] {
			select {
			case sub.ch <- event:
			default:
				// Channel full, skip this subscriber
			}
		}
	}
}

func (b *SimpleEventBus) Subscribe(eventTypes []EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	typeMap := make(map[EventType]bool)
	for _, t := range eventTypes {
		typeMap[t] = true
	}

	b.subscribers[ch] = subscription{
		ch:         ch,
		eventTypes: typeMap,
	}

	return ch
}

func (b *SimpleEventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}
