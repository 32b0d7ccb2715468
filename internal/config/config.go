package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string

	// Timezone is the IANA zone used to interpret absolute scheduling
	// requests and to render fire times.
	Timezone string

	MinDelaySeconds int
	MaxDelaySeconds int

	ApprovalTimeoutSeconds int

	ChatTailLimit    int
	EventBufferSize  int
	ShutdownGraceSec int

	// ClientAPIURL is where the admin CLI commands reach a running server.
	ClientAPIURL     string
	ClientTimeoutSec int
}

func FromEnv() Config {
	dataDir := stringOrDefault("HOMAR_DATA_DIR", "/data")
	dbPath := stringOrDefault("HOMAR_DB_PATH", filepath.Join(dataDir, "homar", "homar.sqlite"))

	return Config{
		Environment:            stringOrDefault("HOMAR_ENV", "development"),
		HTTPAddr:               stringOrDefault("HOMAR_HTTP_ADDR", ":8080"),
		DataDir:                dataDir,
		DBPath:                 dbPath,
		Timezone:               stringOrDefault("HOMAR_TIMEZONE", "Europe/Warsaw"),
		MinDelaySeconds:        intOrDefault("HOMAR_MIN_DELAY_SECONDS", 1),
		MaxDelaySeconds:        intOrDefault("HOMAR_MAX_DELAY_SECONDS", 604800),
		ApprovalTimeoutSeconds: intOrDefault("HOMAR_APPROVAL_TIMEOUT_SECONDS", 300),
		ChatTailLimit:          intOrDefault("HOMAR_CHAT_TAIL_LIMIT", 50),
		EventBufferSize:        intOrDefault("HOMAR_EVENT_BUFFER_SIZE", 64),
		ShutdownGraceSec:       intOrDefault("HOMAR_SHUTDOWN_GRACE_SECONDS", 10),
		ClientAPIURL:           stringOrDefault("HOMAR_API_URL", "http://127.0.0.1:8080"),
		ClientTimeoutSec:       intOrDefault("HOMAR_CLIENT_TIMEOUT_SECONDS", 120),
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
