package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edusuite/chat-bridge/internal/domain"
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// CreateOrIgnore inserts a confirmed message, skipping duplicates. Server
// echoes and history refetches routinely carry ids the cache already holds.
func (r *gormMessageRepository) CreateOrIgnore(ctx context.Context, msg *domain.Message) error {
	model := MessageDomainToModel(msg)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
}

func (r *gormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return MessageModelToDomain(&model), nil
}

func (r *gormMessageRepository) GetByChatID(ctx context.Context, chatID string, limit, offset int) ([]*domain.Message, error) {
	var models []MessageModel
	query := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (r *gormMessageRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	// Escape LIKE special characters to prevent SQL injection
	escapedQuery := strings.ReplaceAll(query, "%", "\\%")
	escapedQuery = strings.ReplaceAll(escapedQuery, "_", "\\_")
	likePattern := "%" + escapedQuery + "%"

	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("body LIKE ? ESCAPE '\\'", likePattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (r *gormMessageRepository) DeleteByChatID(ctx context.Context, chatID string) error {
	return r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&MessageModel{}).Error
}
