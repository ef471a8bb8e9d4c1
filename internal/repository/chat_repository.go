package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edusuite/chat-bridge/internal/domain"
)

type gormChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) Upsert(ctx context.Context, chat *domain.Chat) error {
	model := ChatDomainToModel(chat)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
}

func (r *gormChatRepository) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	var model ChatModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return ChatModelToDomain(&model), nil
}

func (r *gormChatRepository) GetAll(ctx context.Context, limit, offset int) ([]*domain.Chat, error) {
	var models []ChatModel
	query := r.db.WithContext(ctx).Order("last_message_time DESC")

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	chats := make([]*domain.Chat, len(models))
	for i := range models {
		chats[i] = ChatModelToDomain(&models[i])
	}
	return chats, nil
}

func (r *gormChatRepository) UpdateLastMessage(ctx context.Context, id, text, sender string, timestamp time.Time) error {
	return r.db.WithContext(ctx).
		Model(&ChatModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_text":   text,
			"last_message_sender": sender,
			"last_message_time":   timestamp,
			"updated_at":          timestamp,
		}).Error
}

func (r *gormChatRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&ChatModel{}).Error
}
