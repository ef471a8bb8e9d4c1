package socket

import (
	"encoding/json"
	"time"
)

// Wire event vocabulary. These names are what the school chat server
// understands; they must not change while interop with it is required.
const (
	EventAddUser   = "add-user"
	EventJoinChat  = "join-chat"
	EventLeaveChat = "leave-chat"
	EventSendMsg   = "send-msg"
	// EventMsgReceive is the inbound message broadcast. The misspelling is
	// the actual wire event name; do not correct it.
	EventMsgReceive = "msg-recieve"
)

// Frame is the envelope for every event exchanged on the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundMessage is the send-msg payload.
type OutboundMessage struct {
	ChatID        string `json:"chatId"`
	SenderID      string `json:"senderId"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// WireSender matches the server's sender shape on broadcasts.
type WireSender struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// InboundMessage is the msg-recieve payload. Message is left raw: the
// server sends either a plain string or a structured {"text": ...} object.
type InboundMessage struct {
	ID            string          `json:"id"`
	ChatID        string          `json:"chatId"`
	Sender        WireSender      `json:"sender"`
	Message       json.RawMessage `json:"message"`
	FromSelf      bool            `json:"fromSelf"`
	CorrelationID string          `json:"correlationId"`
	CreatedAt     time.Time       `json:"createdAt"`
}
