package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	AllowedOrigin string

	JWTSecret          []byte
	AllowAnonymousOnly bool

	SendBuffer      int
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

func loadConfigFromEnv() (Config, error) {
	cfg := Config{
		Port:               getenv("PORT", "3008"),
		DatabaseURL:        getenv("DATABASE_URL", ""),
		RedisURL:           getenv("REDIS_URL", ""),
		AllowedOrigin:      getenv("ALLOWED_ORIGIN", ""),
		JWTSecret:          []byte(getenv("JWT_SECRET", "")),
		AllowAnonymousOnly: getenv("ALLOW_ANONYMOUS_ONLY", "false") == "true",
		SendBuffer:         getenvInt("WS_SEND_BUFFER", 256),
		ShutdownTimeout:    getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("setlist-service: LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// parseFlags applies command-line overrides on top of the environment.
func parseFlags(cfg Config, args []string, out io.Writer) (Config, error) {
	fs := pflag.NewFlagSet("setlist-service", pflag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string (empty keeps data in memory)")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for cross-instance events (empty delivers locally)")
	fs.StringVar(&cfg.AllowedOrigin, "allowed-origin", cfg.AllowedOrigin, "browser origin allowed to open websockets")
	fs.BoolVar(&cfg.AllowAnonymousOnly, "anonymous-only", cfg.AllowAnonymousOnly, "run without JWT validation")
	fs.IntVar(&cfg.SendBuffer, "ws-send-buffer", cfg.SendBuffer, "outbound messages queued per websocket")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "grace period for in-flight requests")
	level := fs.String("log-level", cfg.LogLevel.String(), "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(*level)); err != nil {
		return Config{}, fmt.Errorf("setlist-service: --log-level: %w", err)
	}
	if cfg.SendBuffer <= 0 {
		return Config{}, errors.New("setlist-service: --ws-send-buffer must be positive")
	}
	if len(cfg.JWTSecret) == 0 && !cfg.AllowAnonymousOnly {
		return Config{}, errors.New("setlist-service: JWT_SECRET is empty, cannot start without JWT validation")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration) time.Duration {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
