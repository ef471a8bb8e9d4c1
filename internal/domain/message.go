package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageKindText MessageKind = "text"
)

type MessageStatus string

const (
	// StatusPending marks an optimistic entry awaiting its server echo.
	StatusPending MessageStatus = "pending"
	// StatusConfirmed marks a message carrying a server-assigned id.
	StatusConfirmed MessageStatus = "confirmed"
	// StatusFailed marks an optimistic entry that never got confirmed.
	StatusFailed MessageStatus = "failed"
)

// TempIDPrefix marks client-generated placeholder ids. Server ids never
// carry it.
const TempIDPrefix = "temp-"

// PlaceholderBody is substituted when an inbound payload has no readable
// body. A degraded display beats breaking the message stream.
const PlaceholderBody = "[unsupported message]"

type Message struct {
	ID            string
	ChatID        string
	Sender        UserRef
	Body          string
	Kind          MessageKind
	CreatedAt     time.Time
	FromSelf      bool
	CorrelationID string
	Status        MessageStatus
}

// IsTemp reports whether the message still carries a client-generated
// placeholder id.
func (m *Message) IsTemp() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// NewOptimisticMessage builds the entry inserted into the local list the
// moment the user submits text, before any network round trip. The
// correlation id travels with the outbound send and is the reconciliation
// key for the server echo.
func NewOptimisticMessage(chatID string, sender UserRef, body string) *Message {
	return &Message{
		ID:            TempIDPrefix + uuid.NewString(),
		ChatID:        chatID,
		Sender:        sender,
		Body:          body,
		Kind:          MessageKindText,
		CreatedAt:     time.Now(),
		FromSelf:      true,
		CorrelationID: uuid.NewString(),
		Status:        StatusPending,
	}
}

// NormalizeBody coerces a wire message body to plain text. The server sends
// either a bare string or a structured {"text": ...} object; anything else
// degrades to a placeholder rather than failing the stream.
func NormalizeBody(raw json.RawMessage) string {
	if len(raw) == 0 {
		return PlaceholderBody
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var structured struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil && structured.Text != nil {
		return *structured.Text
	}

	return PlaceholderBody
}
