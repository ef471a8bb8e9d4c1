package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/edusuite/chat-bridge/internal/cli"
	"github.com/edusuite/chat-bridge/internal/config"
	"github.com/edusuite/chat-bridge/internal/domain"
	"github.com/edusuite/chat-bridge/internal/logger"
	"github.com/edusuite/chat-bridge/internal/repository"
	"github.com/edusuite/chat-bridge/internal/restapi"
	"github.com/edusuite/chat-bridge/internal/service"
	"github.com/edusuite/chat-bridge/internal/session"
	"github.com/edusuite/chat-bridge/internal/socket"
	"github.com/edusuite/chat-bridge/internal/store"
	"github.com/edusuite/chat-bridge/internal/transport/gateway"
	mcpTransport "github.com/edusuite/chat-bridge/internal/transport/mcp"
)

// RunMode defines how the application runs
type RunMode string

const (
	RunModeServer      RunMode = "server"
	RunModeInteractive RunMode = "interactive"
	RunModeHeadless    RunMode = "headless"
)

func main() {
	cfg := config.Load()

	// Keep stdout clean for the CLI modes; headless emits JSON frames.
	level := cfg.LogLevel
	if RunMode(cfg.Mode) != RunModeServer {
		level = "error"
	}
	logger.Init(level)

	if cfg.UserID == "" {
		log.Fatal("user id is required (-user flag or CHAT_USER_ID)")
	}

	db, err := initDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	msgRepo := repository.NewMessageRepository(db)
	chatRepo := repository.NewChatRepository(db)

	eventBus := domain.NewEventBus()

	transport, err := socket.NewClient(cfg.SocketURL, logger.Module("socket"))
	if err != nil {
		log.Fatalf("Invalid socket endpoint %q: %v", cfg.SocketURL, err)
	}

	sess := session.NewManager(transport, logger.Module("session"))
	api := restapi.NewClient(cfg.APIBaseURL, logger.Module("restapi"))

	chatSvc := service.NewChatService(
		sess,
		api,
		store.NewMessageStore(),
		store.NewChatStore(),
		msgRepo,
		chatRepo,
		eventBus,
		service.ChatServiceConfig{
			UserID:      cfg.UserID,
			UserName:    cfg.UserName,
			SendTimeout: cfg.SendTimeout,
		},
		logger.Module("chat"),
	)

	histSvc := service.NewHistoryService(msgRepo, chatRepo)

	ctx := context.Background()

	switch RunMode(cfg.Mode) {
	case RunModeInteractive:
		runInteractiveMode(ctx, chatSvc, histSvc)
	case RunModeHeadless:
		runHeadlessMode(ctx, chatSvc, histSvc)
	default:
		runServerMode(ctx, cfg, chatSvc, histSvc)
	}
}

func runServerMode(ctx context.Context, cfg *config.Config, chatSvc *service.ChatService, histSvc *service.HistoryService) {
	log.Printf("Chat bridge starting...")
	log.Printf("Database: %s", cfg.DatabasePath)
	log.Printf("Gateway address: %s", cfg.GatewayAddress)
	log.Printf("MCP address: %s", cfg.MCPAddress)

	gatewayServer := gateway.NewServer(
		chatSvc,
		histSvc,
		gateway.ServerConfig{
			Address: cfg.GatewayAddress,
		},
		logger.Module("gateway"),
	)

	mcpServer := mcpTransport.NewServer(
		chatSvc,
		histSvc,
		mcpTransport.ServerConfig{
			Address: cfg.MCPAddress,
		},
	)

	errCh := make(chan error, 2)

	go func() {
		log.Printf("Starting gateway server on %s", cfg.GatewayAddress)
		if err := gatewayServer.Start(); err != nil {
			errCh <- fmt.Errorf("gateway server error: %w", err)
		}
	}()

	go func() {
		log.Printf("Starting MCP SSE server on %s", cfg.MCPAddress)
		if err := mcpServer.Start(); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	// Connect in the background; the socket client keeps retrying with
	// backoff if the chat server is not up yet.
	go func() {
		time.Sleep(1 * time.Second)
		if err := chatSvc.Connect(context.Background()); err != nil {
			log.Printf("Initial connect failed: %v", err)
		} else {
			log.Printf("Connected to chat server as %s", cfg.UserID)
		}
	}()

	// Print ready message for subprocess coordination
	fmt.Println("ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Printf("Server error: %v", err)
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("Disconnecting chat session...")
	chatSvc.Disconnect()

	log.Printf("Stopping gateway server...")
	if err := gatewayServer.Stop(); err != nil {
		log.Printf("Gateway server stop error: %v", err)
	}

	log.Printf("Stopping MCP server...")
	if err := mcpServer.Stop(shutdownCtx); err != nil {
		log.Printf("MCP server stop error: %v", err)
	}

	log.Printf("Shutdown complete")
}

func runInteractiveMode(ctx context.Context, chatSvc *service.ChatService, histSvc *service.HistoryService) {
	if err := chatSvc.Connect(ctx); err != nil {
		log.Printf("Connect failed, commands still work offline: %v", err)
	}

	handler := cli.NewCommandHandler(chatSvc, histSvc)
	interactiveCLI := cli.NewInteractiveCLI(handler)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	if err := interactiveCLI.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("CLI error: %v", err)
	}

	chatSvc.Disconnect()
}

func runHeadlessMode(ctx context.Context, chatSvc *service.ChatService, histSvc *service.HistoryService) {
	// Connect errors surface through the connection.status event stream.
	_ = chatSvc.Connect(ctx)

	handler := cli.NewCommandHandler(chatSvc, histSvc)
	headlessCLI := cli.NewHeadlessCLI(handler)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	if err := headlessCLI.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("CLI error: %v", err)
	}

	chatSvc.Disconnect()
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	err = db.AutoMigrate(
		&repository.MessageModel{},
		&repository.ChatModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
