package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edusuite/chat-bridge/internal/domain"
)

// Client talks to the school chat server's REST API: chat listing and
// creation, message history, and the fallback send path.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

type wireUser struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type wireLastMessage struct {
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}

type wireChat struct {
	ID           string           `json:"_id"`
	Name         string           `json:"name"`
	Type         string           `json:"type"`
	Participants []wireUser       `json:"participants"`
	LastMessage  *wireLastMessage `json:"lastMessage"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type wireMessage struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chatId"`
	Sender    wireUser        `json:"sender"`
	Message   json.RawMessage `json:"message"`
	FromSelf  bool            `json:"fromSelf"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ListChats fetches the viewer's chat list, most recent activity first.
func (c *Client) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	var out struct {
		Chats []wireChat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	chats := make([]*domain.Chat, len(out.Chats))
	for i := range out.Chats {
		chats[i] = chatToDomain(&out.Chats[i])
	}
	return chats, nil
}

// CreateChat creates a chat and returns it with its server-assigned id.
func (c *Client) CreateChat(ctx context.Context, name string, participantIDs []string, chatType domain.ChatType) (*domain.Chat, error) {
	body := map[string]interface{}{
		"name":           name,
		"participantIds": participantIDs,
		"type":           string(chatType),
	}
	var out struct {
		Chat wireChat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodPost, "/chats", body, &out); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chatToDomain(&out.Chat), nil
}

// GetMessages fetches message history for a chat. The fromSelf flag is
// computed by the server relative to the requesting user.
func (c *Client) GetMessages(ctx context.Context, chatID, userID string) ([]*domain.Message, error) {
	body := map[string]string{"chatId": chatID, "userId": userID}
	var out []wireMessage
	if err := c.do(ctx, http.MethodPost, "/messages/getmsg", body, &out); err != nil {
		return nil, fmt.Errorf("get messages for chat %s: %w", chatID, err)
	}

	msgs := make([]*domain.Message, len(out))
	for i := range out {
		msgs[i] = messageToDomain(&out[i], chatID)
	}
	return msgs, nil
}

// AddMessage is the fallback send path used when the socket emit fails
// outright. The primary path is the socket's send-msg event.
func (c *Client) AddMessage(ctx context.Context, chatID, senderID, message string) error {
	body := map[string]string{
		"chatId":   chatID,
		"senderId": senderID,
		"message":  message,
	}
	if err := c.do(ctx, http.MethodPost, "/messages/addmsg", body, nil); err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, extractError(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// extractError pulls a human-readable message out of an error response so
// surfaces can display it inline.
func extractError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Msg != "" {
			return body.Msg
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return resp.Status
}

func chatToDomain(w *wireChat) *domain.Chat {
	chat := &domain.Chat{
		ID:        w.ID,
		Name:      w.Name,
		Type:      domain.ChatType(w.Type),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	for _, p := range w.Participants {
		chat.Participants = append(chat.Participants, domain.UserRef{ID: p.ID, Name: p.Name})
	}
	if w.LastMessage != nil {
		chat.LastMessageText = w.LastMessage.Message
		chat.LastMessageSender = w.LastMessage.Sender
		chat.LastMessageTime = w.LastMessage.CreatedAt
	}
	return chat
}

func messageToDomain(w *wireMessage, chatID string) *domain.Message {
	if w.ChatID != "" {
		chatID = w.ChatID
	}
	return &domain.Message{
		ID:        w.ID,
		ChatID:    chatID,
		Sender:    domain.UserRef{ID: w.Sender.ID, Name: w.Sender.Name},
		Body:      domain.NormalizeBody(w.Message),
		Kind:      domain.MessageKindText,
		CreatedAt: w.CreatedAt,
		FromSelf:  w.FromSelf,
		Status:    domain.StatusConfirmed,
	}
}
