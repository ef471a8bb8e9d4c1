package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/edusuite/chat-bridge/internal/domain"
	"github.com/edusuite/chat-bridge/internal/service"
)

// CommandHandler handles CLI commands
type CommandHandler struct {
	chatSvc *service.ChatService
	histSvc *service.HistoryService
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(chatSvc *service.ChatService, histSvc *service.HistoryService) *CommandHandler {
	return &CommandHandler{
		chatSvc: chatSvc,
		histSvc: histSvc,
	}
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string (e.g., "/send Hello there")
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	name := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	return &Command{Name: name, Args: args}, nil
}

// Execute executes a command and returns the result
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus()
	case "connect", "c":
		return h.cmdConnect(ctx)
	case "disconnect", "d":
		return h.cmdDisconnect()
	case "chats", "ls":
		return h.cmdChats(ctx, cmd.Args)
	case "open", "o":
		return h.cmdOpen(ctx, cmd.Args)
	case "close":
		return h.cmdClose()
	case "messages", "msg":
		return h.cmdMessages()
	case "history":
		return h.cmdHistory(ctx, cmd.Args)
	case "send":
		return h.cmdSend(ctx, cmd.Args)
	case "retry":
		return h.cmdRetry(cmd.Args)
	case "search":
		return h.cmdSearch(ctx, cmd.Args)
	case "quit", "exit", "q":
		return map[string]bool{"quit": true}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Connection:
  /status, /s              Show session status
  /connect, /c             Connect to the chat server
  /disconnect, /d          Disconnect from the chat server

Chats:
  /chats, /ls [limit]      List chats (default: 20)
  /open, /o <chat_id>      Open a chat: load history and join its room
  /close                   Close the active chat
  /messages, /msg          Show the active chat's message list
  /history <chat_id> [limit]  Show cached messages from any chat

Messages:
  /send <text>             Send a text message to the active chat
  /retry <correlation_id>  Re-send a failed message
  /search <query> [limit]  Search cached messages

Other:
  /help, /h                Show this help
  /quit, /exit, /q         Exit the CLI`

	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus() (interface{}, error) {
	st := h.chatSvc.Status()

	status := "disconnected"
	if st.Connected {
		status = "connected"
	}

	return SessionStatus{
		Connected:   st.Connected,
		UserID:      st.UserID,
		ActiveChat:  st.ActiveChat,
		JoinedRooms: st.JoinedRooms,
		QueuedSends: st.QueuedSends,
		Status:      status,
	}, nil
}

func (h *CommandHandler) cmdConnect(ctx context.Context) (interface{}, error) {
	if err := h.chatSvc.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return map[string]string{"message": "Connected to the chat server"}, nil
}

func (h *CommandHandler) cmdDisconnect() (interface{}, error) {
	h.chatSvc.Disconnect()
	return map[string]string{"message": "Disconnected from the chat server"}, nil
}

func (h *CommandHandler) cmdChats(ctx context.Context, args []string) (interface{}, error) {
	limit := 20
	if len(args) > 0 {
		if l, err := strconv.Atoi(args[0]); err == nil && l > 0 {
			limit = l
		}
	}

	chats, err := h.chatSvc.ListChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chats: %w", err)
	}
	if len(chats) > limit {
		chats = chats[:limit]
	}

	st := h.chatSvc.Status()
	result := make([]ChatInfo, len(chats))
	for i, chat := range chats {
		result[i] = ChatInfo{
			ID:              chat.ID,
			Name:            chat.DisplayName(st.UserID),
			Type:            string(chat.Type),
			LastMessageText: chat.LastMessageText,
			LastMessageTime: chat.LastMessageTime,
		}
	}

	return map[string]interface{}{"chats": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdOpen(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /open <chat_id>")
	}

	chatID := args[0]
	if err := h.chatSvc.OpenChat(ctx, chatID); err != nil {
		return nil, fmt.Errorf("failed to open chat: %w", err)
	}

	msgs := h.chatSvc.Messages()
	result := make([]MessageInfo, len(msgs))
	for i, msg := range msgs {
		result[i] = messageInfo(msg)
	}

	return map[string]interface{}{"chat_id": chatID, "messages": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdClose() (interface{}, error) {
	h.chatSvc.CloseChat()
	return map[string]string{"message": "Chat closed"}, nil
}

func (h *CommandHandler) cmdMessages() (interface{}, error) {
	msgs := h.chatSvc.Messages()
	result := make([]MessageInfo, len(msgs))
	for i, msg := range msgs {
		result[i] = messageInfo(msg)
	}
	return map[string]interface{}{"messages": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdHistory(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /history <chat_id> [limit]")
	}

	chatID := args[0]
	limit := 50
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[1]); err == nil && l > 0 {
			limit = l
		}
	}

	messages, err := h.histSvc.GetMessages(ctx, chatID, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = messageInfo(msg)
	}

	return map[string]interface{}{"messages": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdSend(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /send <text>")
	}

	text := strings.Join(args, " ")

	msg, err := h.chatSvc.SendText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return messageInfo(msg), nil
}

func (h *CommandHandler) cmdRetry(args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /retry <correlation_id>")
	}

	msg, err := h.chatSvc.RetrySend(args[0])
	if err != nil {
		return nil, fmt.Errorf("retry failed: %w", err)
	}

	return messageInfo(msg), nil
}

func (h *CommandHandler) cmdSearch(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /search <query> [limit]")
	}

	query := args[0]
	limit := 20

	// Check if last arg is a number (limit)
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[len(args)-1]); err == nil && l > 0 {
			limit = l
			query = strings.Join(args[:len(args)-1], " ")
		} else {
			query = strings.Join(args, " ")
		}
	}

	messages, err := h.histSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = messageInfo(msg)
	}

	return map[string]interface{}{
		"query":    query,
		"messages": result,
		"count":    len(result),
	}, nil
}

// SubscribeEvents subscribes to session events
func (h *CommandHandler) SubscribeEvents(eventTypes []domain.EventType) <-chan Event {
	if len(eventTypes) == 0 {
		eventTypes = []domain.EventType{
			domain.EventTypeMessageReceived,
			domain.EventTypeMessageConfirmed,
			domain.EventTypeMessageFailed,
			domain.EventTypeConnectionStatus,
		}
	}

	eventBus := h.chatSvc.GetEventBus()
	domainChan := eventBus.Subscribe(eventTypes)

	resultChan := make(chan Event)

	go func() {
		defer close(resultChan)
		for evt := range domainChan {
			var eventType string
			var data interface{}

			switch e := evt.(type) {
			case domain.MessageReceivedEvent:
				eventType = "message_received"
				data = messageInfo(e.Message)
			case domain.MessageSentEvent:
				eventType = "message_sent"
				data = messageInfo(e.Message)
			case domain.MessageConfirmedEvent:
				eventType = "message_confirmed"
				data = messageInfo(e.Message)
			case domain.MessageFailedEvent:
				eventType = "message_failed"
				data = messageInfo(e.Message)
			case domain.ChatOpenedEvent:
				eventType = "chat_opened"
				data = map[string]string{"chat_id": e.ChatID}
			case domain.ConnectionStatusEvent:
				eventType = "connection_status"
				data = map[string]interface{}{
					"connected": e.Connected,
					"reason":    e.Reason,
				}
			default:
				continue
			}

			resultChan <- Event{
				Type:      eventType,
				Timestamp: evt.Timestamp(),
				Data:      data,
			}
		}
	}()

	return resultChan
}

func messageInfo(msg *domain.Message) MessageInfo {
	return MessageInfo{
		ID:            msg.ID,
		ChatID:        msg.ChatID,
		SenderID:      msg.Sender.ID,
		SenderName:    msg.Sender.Name,
		Text:          msg.Body,
		Timestamp:     msg.CreatedAt,
		FromSelf:      msg.FromSelf,
		CorrelationID: msg.CorrelationID,
		Status:        string(msg.Status),
	}
}
