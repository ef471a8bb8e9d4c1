package config

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Mode           string
	SocketURL      string
	APIBaseURL     string
	DatabasePath   string
	GatewayAddress string
	MCPAddress     string
	UserID         string
	UserName       string
	LogLevel       string
	SendTimeout    time.Duration
}

func Load() *Config {
	// Optional .env file; absence is not an error.
	_ = godotenv.Load()

	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".chat-bridge")

	cfg := &Config{}

	flag.StringVar(&cfg.Mode, "mode", "server", "Run mode: server, interactive, or headless")
	flag.StringVar(&cfg.SocketURL, "socket", getEnv("CHAT_SOCKET_URL", "http://localhost:5000"), "Chat server socket endpoint")
	flag.StringVar(&cfg.APIBaseURL, "api", getEnv("CHAT_API_URL", "http://localhost:5000/api"), "Chat server REST base URL")
	flag.StringVar(&cfg.DatabasePath, "db", getEnv("CHAT_DATABASE_PATH", filepath.Join(dataDir, "chat.db")), "Local cache database path")
	flag.StringVar(&cfg.GatewayAddress, "gateway-addr", getEnv("CHAT_GATEWAY_ADDRESS", "127.0.0.1:8090"), "UI gateway listen address")
	flag.StringVar(&cfg.MCPAddress, "mcp-addr", getEnv("CHAT_MCP_ADDRESS", "127.0.0.1:8091"), "MCP SSE server address")
	flag.StringVar(&cfg.UserID, "user", getEnv("CHAT_USER_ID", ""), "Authenticated user id this session represents")
	flag.StringVar(&cfg.UserName, "user-name", getEnv("CHAT_USER_NAME", ""), "Display name of the authenticated user")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("CHAT_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.DurationVar(&cfg.SendTimeout, "send-timeout", getEnvDuration("CHAT_SEND_TIMEOUT", 15*time.Second), "Time before an unconfirmed send is marked failed")

	flag.Parse()

	os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
