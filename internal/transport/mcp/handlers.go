package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/edusuite/chat-bridge/internal/domain"
)

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.chatSvc.Status()

	status := "disconnected"
	if st.Connected {
		status = "connected"
	}

	active := st.ActiveChat
	if active == "" {
		active = "(none)"
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Chat Session Status: %s\nUser: %s\nActive chat: %s\nQueued sends: %d",
		status, st.UserID, active, st.QueuedSends)), nil
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.chatSvc.Connect(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to connect: %v", err)), nil
	}
	return mcp.NewToolResultText("Connected to the chat server"), nil
}

func (s *Server) handleDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.chatSvc.Disconnect()
	return mcp.NewToolResultText("Disconnected from the chat server"), nil
}

func (s *Server) handleListChats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		limit = 20
	}

	chats, err := s.chatSvc.ListChats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get chats: %v", err)), nil
	}
	if len(chats) > limit {
		chats = chats[:limit]
	}

	if len(chats) == 0 {
		return mcp.NewToolResultText("No chats found."), nil
	}

	st := s.chatSvc.Status()

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d chat(s):\n\n", len(chats)))

	for i, chat := range chats {
		chatType := "Direct"
		if chat.Type == domain.ChatTypeGroup {
			chatType = "Group"
		}

		result.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, chat.DisplayName(st.UserID), chatType))
		result.WriteString(fmt.Sprintf("   ID: %s\n", chat.ID))

		if chat.LastMessageText != "" {
			preview := chat.LastMessageText
			if len(preview) > 60 {
				preview = preview[:60] + "..."
			}
			result.WriteString(fmt.Sprintf("   Last: %s\n", preview))
			if !chat.LastMessageTime.IsZero() {
				result.WriteString(fmt.Sprintf("   Time: %s\n", chat.LastMessageTime.Format("2006-01-02 15:04")))
			}
		}
		result.WriteString("\n")
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleGetMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID := request.GetString("chat_id", "")
	if chatID == "" {
		return mcp.NewToolResultError("chat_id is required"), nil
	}

	limit := request.GetInt("limit", 50)
	if limit > 200 {
		limit = 200
	}
	if limit <= 0 {
		limit = 50
	}

	messages, err := s.histSvc.GetMessages(ctx, chatID, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get messages: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No cached messages in chat %s", chatID)), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Messages from %s (%d):\n\n", chatID, len(messages)))

	for _, msg := range messages {
		sender := "Me"
		if !msg.FromSelf {
			sender = msg.Sender.Name
			if sender == "" {
				sender = msg.Sender.ID
			}
		}

		timestamp := msg.CreatedAt.Format("2006-01-02 15:04")
		result.WriteString(fmt.Sprintf("[%s] %s:\n", timestamp, sender))
		result.WriteString(fmt.Sprintf("  %s\n", msg.Body))
		result.WriteString(fmt.Sprintf("  ID: %s\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleOpenChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID := request.GetString("chat_id", "")
	if chatID == "" {
		return mcp.NewToolResultError("chat_id is required"), nil
	}

	if err := s.chatSvc.OpenChat(ctx, chatID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to open chat: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Chat %s is now active (%d messages loaded)",
		chatID, len(s.chatSvc.Messages()))), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	msg, err := s.chatSvc.SendText(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Message sent (status: %s)\nTemp ID: %s\nChat: %s",
		msg.Status, msg.ID, msg.ChatID)), nil
}

func (s *Server) handleSearchMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := request.GetInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		limit = 20
	}

	messages, err := s.histSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found matching '%s'", query)), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Search results for '%s' (%d found):\n\n", query, len(messages)))

	for i, msg := range messages {
		sender := "Me"
		if !msg.FromSelf {
			sender = msg.Sender.Name
		}

		text := msg.Body
		if len(text) > 100 {
			text = text[:100] + "..."
		}

		result.WriteString(fmt.Sprintf("%d. [%s] %s:\n", i+1, msg.CreatedAt.Format("2006-01-02 15:04"), sender))
		result.WriteString(fmt.Sprintf("   Chat: %s\n", msg.ChatID))
		result.WriteString(fmt.Sprintf("   %s\n", text))
		result.WriteString(fmt.Sprintf("   ID: %s\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}
