package cli

import "time"

// Mode represents the CLI operation mode
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeHeadless    Mode = "headless"
)

// Request represents a JSON request in headless mode
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a JSON response in headless mode
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Event represents a real-time event in headless mode
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ChatInfo represents chat information for responses
type ChatInfo struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	LastMessageText string    `json:"last_message_text,omitempty"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
}

// MessageInfo represents message information for responses
type MessageInfo struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chat_id"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name,omitempty"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	FromSelf      bool      `json:"from_self"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Status        string    `json:"status"`
}

// SessionStatus represents session status for responses
type SessionStatus struct {
	Connected   bool     `json:"connected"`
	UserID      string   `json:"user_id"`
	ActiveChat  string   `json:"active_chat,omitempty"`
	JoinedRooms []string `json:"joined_rooms,omitempty"`
	QueuedSends int      `json:"queued_sends"`
	Status      string   `json:"status"`
}
