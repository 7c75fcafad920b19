package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the indexer.
type Config struct {
	// RPC
	RPCURLs  []string
	RPCRPS   int
	RPCBurst int

	// PostgreSQL
	PostgresURL string

	// Redis queue mode. Empty RedisURL runs the standalone scheduler
	// instead of the publisher/worker split.
	RedisURL      string
	BlocksTopic   string
	ConsumerGroup string

	// Scheduler
	IndexConcurrency int
	BatchSize        int
	PollInterval     time.Duration
	MaxHeightRetries int

	// Block cache
	CacheDir string

	// Entity snapshot refresh
	EntityRefreshInterval time.Duration

	// Aggregation
	AggInterval time.Duration

	// WebSocket (new-block notification mode)
	WSEnabled        bool
	WSMaxRetries     int
	WSReconnectDelay time.Duration

	// Logging
	LogLevel string

	// HTTP API
	HTTPEnabled bool
	HTTPAddr    string
	AdminToken  string
}

// Load loads configuration from environment variables, reading a local
// .env file first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Defaults
		RPCRPS:                20,
		RPCBurst:              40,
		BlocksTopic:           "blocks-to-index",
		ConsumerGroup:         "indexer-workers",
		IndexConcurrency:      1,
		BatchSize:             50,
		PollInterval:          5 * time.Second,
		MaxHeightRetries:      3,
		EntityRefreshInterval: 5 * time.Minute,
		AggInterval:           time.Minute,
		WSEnabled:             false,
		WSMaxRetries:          25,
		WSReconnectDelay:      time.Second,
		LogLevel:              "info",
	}

	// Required
	cfg.PostgresURL = os.Getenv("POSTGRES_URL")
	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("POSTGRES_URL is required")
	}

	if v := os.Getenv("RPC_URLS"); v != "" {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.RPCURLs = append(cfg.RPCURLs, u)
			}
		}
	}
	if len(cfg.RPCURLs) == 0 {
		return nil, fmt.Errorf("RPC_URLS is required")
	}

	// Optional overrides
	cfg.RedisURL = os.Getenv("REDIS_URL")

	if v := os.Getenv("RPC_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RPCRPS = n
		}
	}

	if v := os.Getenv("RPC_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RPCBurst = n
		}
	}

	if v := os.Getenv("BLOCKS_TOPIC"); v != "" {
		cfg.BlocksTopic = v
	}

	if v := os.Getenv("CONSUMER_GROUP"); v != "" {
		cfg.ConsumerGroup = v
	}

	if v := os.Getenv("INDEX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.IndexConcurrency = n
		}
	}

	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}

	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}

	if v := os.Getenv("MAX_HEIGHT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxHeightRetries = n
		}
	}

	cfg.CacheDir = os.Getenv("CACHE_DIR")

	if v := os.Getenv("ENTITY_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.EntityRefreshInterval = d
		}
	}

	if v := os.Getenv("AGG_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AggInterval = d
		}
	}

	if v := os.Getenv("WS_ENABLED"); v != "" {
		cfg.WSEnabled = v == "true" || v == "1"
	}

	if v := os.Getenv("WS_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WSMaxRetries = n
		}
	}

	if v := os.Getenv("WS_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WSReconnectDelay = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// HTTP API Configuration
	if v := os.Getenv("HTTP_ENABLED"); v != "" {
		cfg.HTTPEnabled = v == "true" || v == "1"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	return cfg, nil
}

// QueueMode reports whether the Redis publisher/worker split is
// configured.
func (c *Config) QueueMode() bool {
	return c.RedisURL != ""
}
