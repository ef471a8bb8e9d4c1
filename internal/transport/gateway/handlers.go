package gateway

import (
	"github.com/gofiber/fiber/v2"

	"github.com/edusuite/chat-bridge/internal/domain"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.chatSvc.Status()
	return c.JSON(StatusInfo{
		Connected:   st.Connected,
		UserID:      st.UserID,
		ActiveChat:  st.ActiveChat,
		JoinedRooms: st.JoinedRooms,
		QueuedSends: st.QueuedSends,
	})
}

func (s *Server) handleListChats(c *fiber.Ctx) error {
	chats, err := s.chatSvc.ListChats(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	out := make([]ChatInfo, len(chats))
	for i, chat := range chats {
		out[i] = chatToInfo(chat)
	}
	return c.JSON(fiber.Map{"chats": out})
}

func (s *Server) handleCreateChat(c *fiber.Ctx) error {
	var body struct {
		Name           string   `json:"name"`
		ParticipantIDs []string `json:"participantIds"`
		Type           string   `json:"type"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(body.ParticipantIDs) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "participantIds is required")
	}
	chatType := domain.ChatType(body.Type)
	if chatType != domain.ChatTypeDirect && chatType != domain.ChatTypeGroup {
		return fiber.NewError(fiber.StatusBadRequest, "type must be direct or group")
	}

	chat, err := s.chatSvc.CreateChat(c.Context(), body.Name, body.ParticipantIDs, chatType)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"chat": chatToInfo(chat)})
}

func (s *Server) handleChatHistory(c *fiber.Ctx) error {
	chatID := c.Params("id")
	limit := c.QueryInt("limit", 0)
	offset := c.QueryInt("offset", 0)

	msgs, err := s.histSvc.GetMessages(c.Context(), chatID, limit, offset)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	out := make([]MessageInfo, len(msgs))
	for i, msg := range msgs {
		out[i] = messageToInfo(msg)
	}
	return c.JSON(fiber.Map{"messages": out})
}

func (s *Server) handleOpenChat(c *fiber.Ctx) error {
	chatID := c.Params("id")

	if err := s.chatSvc.OpenChat(c.Context(), chatID); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return s.handleActiveMessages(c)
}

func (s *Server) handleCloseChat(c *fiber.Ctx) error {
	s.chatSvc.CloseChat()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleActiveMessages(c *fiber.Ctx) error {
	msgs := s.chatSvc.Messages()
	out := make([]MessageInfo, len(msgs))
	for i, msg := range msgs {
		out[i] = messageToInfo(msg)
	}
	return c.JSON(fiber.Map{"messages": out})
}

func (s *Server) handleSend(c *fiber.Ctx) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	msg, err := s.chatSvc.SendText(c.Context(), body.Message)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": messageToInfo(msg)})
}

func (s *Server) handleRetry(c *fiber.Ctx) error {
	var body struct {
		CorrelationID string `json:"correlationId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	msg, err := s.chatSvc.RetrySend(body.CorrelationID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": messageToInfo(msg)})
}

func chatToInfo(chat *domain.Chat) ChatInfo {
	info := ChatInfo{
		ID:                chat.ID,
		Name:              chat.Name,
		Type:              string(chat.Type),
		LastMessageText:   chat.LastMessageText,
		LastMessageSender: chat.LastMessageSender,
		LastMessageTime:   chat.LastMessageTime,
	}
	for _, p := range chat.Participants {
		info.Participants = append(info.Participants, ParticipantInfo{ID: p.ID, Name: p.Name})
	}
	return info
}

func messageToInfo(msg *domain.Message) MessageInfo {
	return MessageInfo{
		ID:            msg.ID,
		ChatID:        msg.ChatID,
		SenderID:      msg.Sender.ID,
		SenderName:    msg.Sender.Name,
		Body:          msg.Body,
		Kind:          string(msg.Kind),
		CreatedAt:     msg.CreatedAt,
		FromSelf:      msg.FromSelf,
		CorrelationID: msg.CorrelationID,
		Status:        string(msg.Status),
	}
}
