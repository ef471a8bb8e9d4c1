package service

import (
	"context"

	"github.com/edusuite/chat-bridge/internal/domain"
	"github.com/edusuite/chat-bridge/internal/repository"
)

// HistoryService answers read-side queries from the local cache for
// surfaces that do not hold the live message store.
type HistoryService struct {
	msgRepo  repository.MessageRepository
	chatRepo repository.ChatRepository
}

func NewHistoryService(msgRepo repository.MessageRepository, chatRepo repository.ChatRepository) *HistoryService {
	return &HistoryService{
		msgRepo:  msgRepo,
		chatRepo: chatRepo,
	}
}

func (s *HistoryService) GetChats(ctx context.Context, limit, offset int) ([]*domain.Chat, error) {
	return s.chatRepo.GetAll(ctx, limit, offset)
}

func (s *HistoryService) GetChat(ctx context.Context, id string) (*domain.Chat, error) {
	return s.chatRepo.GetByID(ctx, id)
}

func (s *HistoryService) GetMessages(ctx context.Context, chatID string, limit, offset int) ([]*domain.Message, error) {
	return s.msgRepo.GetByChatID(ctx, chatID, limit, offset)
}

func (s *HistoryService) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	return s.msgRepo.GetByID(ctx, id)
}

func (s *HistoryService) SearchMessages(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	return s.msgRepo.Search(ctx, query, limit)
}
