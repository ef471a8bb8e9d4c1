package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/edusuite/chat-bridge/internal/service"
)

type ServerConfig struct {
	Address string
}

type Server struct {
	mcpServer  *server.MCPServer
	sseServer  *server.SSEServer
	httpServer *http.Server
	chatSvc    *service.ChatService
	histSvc    *service.HistoryService
	config     ServerConfig
}

func NewServer(
	chatSvc *service.ChatService,
	histSvc *service.HistoryService,
	config ServerConfig,
) *Server {
	s := &Server{
		chatSvc: chatSvc,
		histSvc: histSvc,
		config:  config,
	}

	s.mcpServer = server.NewMCPServer(
		"chat-bridge",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	s.sseServer = server.NewSSEServer(s.mcpServer,
		server.WithKeepAliveInterval(30*time.Second),
	)

	return s
}

func (s *Server) registerTools() {
	// Connection status tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_status",
			mcp.WithDescription("Get the chat session status: connection, active chat, queued sends"),
		),
		s.handleStatus,
	)

	// Connect tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_connect",
			mcp.WithDescription("Connect the chat session to the school chat server"),
		),
		s.handleConnect,
	)

	// Disconnect tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_disconnect",
			mcp.WithDescription("Disconnect the chat session"),
		),
		s.handleDisconnect,
	)

	// List chats tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_list_chats",
			mcp.WithDescription("List chats sorted by most recent activity"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of chats to return (default 20, max 100)"),
			),
		),
		s.handleListChats,
	)

	// Get messages tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_get_messages",
			mcp.WithDescription("Get cached messages from a specific chat"),
			mcp.WithString("chat_id",
				mcp.Required(),
				mcp.Description("Identifier of the chat"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of messages to return (default 50, max 200)"),
			),
		),
		s.handleGetMessages,
	)

	// Open chat tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_open",
			mcp.WithDescription("Make a chat the active one: loads history and joins its room"),
			mcp.WithString("chat_id",
				mcp.Required(),
				mcp.Description("Identifier of the chat to open"),
			),
		),
		s.handleOpenChat,
	)

	// Send message tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_send_message",
			mcp.WithDescription("Send a text message to the active chat"),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("Message text to send"),
			),
		),
		s.handleSendMessage,
	)

	// Search messages tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_search_messages",
			mcp.WithDescription("Search cached messages across all chats by text content"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query text"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum results to return (default 20, max 100)"),
			),
		),
		s.handleSearchMessages,
	)
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.Handle("/sse", s.sseServer.SSEHandler())
	mux.Handle("/message", s.sseServer.MessageHandler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: mux,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
