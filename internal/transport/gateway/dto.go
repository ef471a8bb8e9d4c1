package gateway

import "time"

// ChatInfo is the chat shape served to the UI layer.
type ChatInfo struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Type              string            `json:"type"`
	Participants      []ParticipantInfo `json:"participants,omitempty"`
	LastMessageText   string            `json:"last_message_text,omitempty"`
	LastMessageSender string            `json:"last_message_sender,omitempty"`
	LastMessageTime   time.Time         `json:"last_message_time,omitempty"`
}

type ParticipantInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessageInfo is the message shape served to the UI layer.
type MessageInfo struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chat_id"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	Body          string    `json:"body"`
	Kind          string    `json:"kind"`
	CreatedAt     time.Time `json:"created_at"`
	FromSelf      bool      `json:"from_self"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Status        string    `json:"status"`
}

// StatusInfo is the session status shape.
type StatusInfo struct {
	Connected   bool     `json:"connected"`
	UserID      string   `json:"user_id"`
	ActiveChat  string   `json:"active_chat,omitempty"`
	JoinedRooms []string `json:"joined_rooms,omitempty"`
	QueuedSends int      `json:"queued_sends"`
}

// EventFrame is the envelope streamed over the gateway websocket.
type EventFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
