package repository

import (
	"encoding/json"
	"time"

	"github.com/edusuite/chat-bridge/internal/domain"
)

type MessageModel struct {
	ID            string    `gorm:"primaryKey;column:id"`
	ChatID        string    `gorm:"column:chat_id;index:idx_chat_created"`
	SenderID      string    `gorm:"column:sender_id"`
	SenderName    string    `gorm:"column:sender_name"`
	Kind          string    `gorm:"column:kind"`
	Body          string    `gorm:"column:body"`
	CreatedAt     time.Time `gorm:"column:created_at;index:idx_chat_created"`
	FromSelf      bool      `gorm:"column:from_self"`
	CorrelationID string    `gorm:"column:correlation_id"`
}

func (MessageModel) TableName() string { return "messages" }

type ChatModel struct {
	ID                string    `gorm:"primaryKey;column:id"`
	Name              string    `gorm:"column:name"`
	Type              string    `gorm:"column:type"`
	Participants      string    `gorm:"column:participants"` // JSON-encoded UserRef list
	LastMessageText   string    `gorm:"column:last_message_text"`
	LastMessageSender string    `gorm:"column:last_message_sender"`
	LastMessageTime   time.Time `gorm:"column:last_message_time;index"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (ChatModel) TableName() string { return "chats" }

// Conversion functions
func MessageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}
	return &domain.Message{
		ID:            m.ID,
		ChatID:        m.ChatID,
		Sender:        domain.UserRef{ID: m.SenderID, Name: m.SenderName},
		Body:          m.Body,
		Kind:          domain.MessageKind(m.Kind),
		CreatedAt:     m.CreatedAt,
		FromSelf:      m.FromSelf,
		CorrelationID: m.CorrelationID,
		Status:        domain.StatusConfirmed,
	}
}

func MessageDomainToModel(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}
	return &MessageModel{
		ID:            msg.ID,
		ChatID:        msg.ChatID,
		SenderID:      msg.Sender.ID,
		SenderName:    msg.Sender.Name,
		Kind:          string(msg.Kind),
		Body:          msg.Body,
		CreatedAt:     msg.CreatedAt,
		FromSelf:      msg.FromSelf,
		CorrelationID: msg.CorrelationID,
	}
}

func ChatModelToDomain(m *ChatModel) *domain.Chat {
	if m == nil {
		return nil
	}

	var participants []domain.UserRef
	if m.Participants != "" {
		_ = json.Unmarshal([]byte(m.Participants), &participants)
	}

	return &domain.Chat{
		ID:                m.ID,
		Name:              m.Name,
		Type:              domain.ChatType(m.Type),
		Participants:      participants,
		LastMessageText:   m.LastMessageText,
		LastMessageSender: m.LastMessageSender,
		LastMessageTime:   m.LastMessageTime,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func ChatDomainToModel(chat *domain.Chat) *ChatModel {
	if chat == nil {
		return nil
	}

	participants, _ := json.Marshal(chat.Participants)

	return &ChatModel{
		ID:                chat.ID,
		Name:              chat.Name,
		Type:              string(chat.Type),
		Participants:      string(participants),
		LastMessageText:   chat.LastMessageText,
		LastMessageSender: chat.LastMessageSender,
		LastMessageTime:   chat.LastMessageTime,
		CreatedAt:         chat.CreatedAt,
		UpdatedAt:         chat.UpdatedAt,
	}
}
