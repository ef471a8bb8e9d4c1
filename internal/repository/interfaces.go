package repository

import (
	"context"
	"time"

	"github.com/edusuite/chat-bridge/internal/domain"
)

type MessageRepository interface {
	CreateOrIgnore(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	GetByChatID(ctx context.Context, chatID string, limit, offset int) ([]*domain.Message, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	DeleteByChatID(ctx context.Context, chatID string) error
}

type ChatRepository interface {
	Upsert(ctx context.Context, chat *domain.Chat) error
	GetByID(ctx context.Context, id string) (*domain.Chat, error)
	GetAll(ctx context.Context, limit, offset int) ([]*domain.Chat, error)
	UpdateLastMessage(ctx context.Context, id, text, sender string, timestamp time.Time) error
	Delete(ctx context.Context, id string) error
}
