package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	Port string

	TurnTimeout time.Duration

	LogLevel  string
	LogFormat string

	DatabaseURL         string
	RedisURL            string
	LeaderboardLimit    int
	LeaderboardCacheTTL time.Duration

	WSReadTimeout  time.Duration
	WSSendBuffer   int
	AllowedOrigins []string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:                "8080",
		TurnTimeout:         60 * time.Second,
		LogLevel:            "info",
		LogFormat:           "json",
		LeaderboardLimit:    50,
		LeaderboardCacheTTL: 30 * time.Second,
		WSReadTimeout:       10 * time.Minute,
		WSSendBuffer:        32,
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("TURN_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("TURN_TIMEOUT must be a positive duration, got %q", v)
		}
		cfg.TurnTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))); v == "json" || v == "console" {
		cfg.LogFormat = v
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("LEADERBOARD_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LeaderboardLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEADERBOARD_CACHE_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LeaderboardCacheTTL = d
		}
	}

	if v := strings.TrimSpace(os.Getenv("WS_READ_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WSReadTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("WS_SEND_BUFFER")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WSSendBuffer = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		// browser clients are served from other hosts
		cfg.AllowedOrigins = []string{"*"}
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string { return ":" + c.Port }
