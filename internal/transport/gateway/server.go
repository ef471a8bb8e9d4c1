package gateway

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/edusuite/chat-bridge/internal/service"
)

type ServerConfig struct {
	Address string
}

// Server exposes the chat session to the UI layer over HTTP plus a
// websocket event stream.
type Server struct {
	app     *fiber.App
	chatSvc *service.ChatService
	histSvc *service.HistoryService
	config  ServerConfig
	log     zerolog.Logger
}

func NewServer(chatSvc *service.ChatService, histSvc *service.HistoryService, config ServerConfig, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:     app,
		chatSvc: chatSvc,
		histSvc: histSvc,
		config:  config,
		log:     log,
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/chats", s.handleListChats)
	api.Post("/chats", s.handleCreateChat)
	api.Get("/chats/:id/messages", s.handleChatHistory)
	api.Post("/chats/:id/open", s.handleOpenChat)
	api.Post("/chats/close", s.handleCloseChat)
	api.Get("/messages", s.handleActiveMessages)
	api.Post("/messages", s.handleSend)
	api.Post("/messages/retry", s.handleRetry)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleEventStream))

	return s
}

func (s *Server) Start() error {
	return s.app.Listen(s.config.Address)
}

func (s *Server) Stop() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
