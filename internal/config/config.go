package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads from the environment.
type Config struct {
	HTTPAddr    string
	DatabaseURI string
	JWTSecret   string

	MaxMessageLength   int
	MaxAttachmentBytes int64
	SlowModeDefault    int

	HeartbeatInterval time.Duration
	HeartbeatGrace    time.Duration
	OutboundQueueCap  int
	TypingTTL         time.Duration
	IdleToAway        time.Duration
	ShutdownGrace     time.Duration
}

// Load reads .env (if present) and the process environment. It returns
// an error instead of exiting so main can map it to a non-zero code.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:    envOrDefault("HTTP_ADDR", ":8080"),
		DatabaseURI: os.Getenv("SERVICE_URI"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
	}
	if cfg.DatabaseURI == "" {
		return cfg, fmt.Errorf("SERVICE_URI is not set")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is not set")
	}

	var err error
	if cfg.MaxMessageLength, err = envInt("MAX_MESSAGE_LENGTH", 4000); err != nil {
		return cfg, err
	}
	maxAttach, err := envInt("MAX_ATTACHMENT_BYTES", 25<<20)
	if err != nil {
		return cfg, err
	}
	cfg.MaxAttachmentBytes = int64(maxAttach)
	if cfg.SlowModeDefault, err = envInt("SLOW_MODE_DEFAULT", 0); err != nil {
		return cfg, err
	}
	if cfg.HeartbeatInterval, err = envDuration("HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.HeartbeatGrace, err = envDuration("HEARTBEAT_GRACE", 60*time.Second); err != nil {
		return cfg, err
	}
	if cfg.OutboundQueueCap, err = envInt("OUTBOUND_QUEUE_CAPACITY", 256); err != nil {
		return cfg, err
	}
	if cfg.TypingTTL, err = envDuration("TYPING_TTL", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.IdleToAway, err = envDuration("IDLE_TO_AWAY_THRESHOLD", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ShutdownGrace, err = envDuration("SHUTDOWN_GRACE", 10*time.Second); err != nil {
		return cfg, err
	}

	if cfg.MaxMessageLength <= 0 || cfg.OutboundQueueCap <= 0 {
		return cfg, fmt.Errorf("MAX_MESSAGE_LENGTH and OUTBOUND_QUEUE_CAPACITY must be positive")
	}
	if cfg.SlowModeDefault < 0 {
		return cfg, fmt.Errorf("SLOW_MODE_DEFAULT must be non-negative")
	}
	if cfg.HeartbeatGrace < 2*cfg.HeartbeatInterval {
		// Clock skew tolerance: the grace window must cover two pings.
		cfg.HeartbeatGrace = 2 * cfg.HeartbeatInterval
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
