// Package config centralizes how vaultlink reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	IngestInline = "inline"
	IngestQueue  = "queue"
)

// Config represents runtime configuration for every binary. Each binary only
// reads the fields it needs.
type Config struct {
	Address string `validate:"required"`

	BotToken    string
	BotUsername string
	ChannelID   int64

	Store       string `validate:"oneof=postgres memory"`
	DatabaseURL string `validate:"required_if=Store postgres"`

	IngestMode    string `validate:"oneof=inline queue"`
	RedisAddr     string `validate:"required_if=IngestMode queue"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	ProcessingPool     int           `validate:"gt=0"`
	MediaGroupDelay    time.Duration `validate:"gt=0"`
	SessionTTL         time.Duration `validate:"gt=0"`
	PageSize           int           `validate:"gt=0,lte=50"`
	MaxQueryLength     int           `validate:"gt=0"`
	HandlerConcurrency int           `validate:"gt=0"`
	SendRate           float64       `validate:"gt=0"`
	LinkCacheSize      int           `validate:"gt=0"`
	LinkCacheTTL       time.Duration `validate:"gt=0"`

	S3Endpoint    string
	S3AccessKey   string `validate:"required_with=S3Endpoint"`
	S3SecretKey   string `validate:"required_with=S3Endpoint"`
	S3Region      string
	S3UseSSL      bool
	ArchiveBucket string `validate:"required_with=S3Endpoint"`
}

const (
	defaultAddress         = ":8080"
	defaultWorkerCount     = 2
	defaultMediaGroupDelay = 1500 * time.Millisecond
	defaultSessionTTL      = 30 * time.Minute
	defaultPageSize        = 10
	defaultMaxQueryLength  = 100
	defaultConcurrency     = 8
	defaultSendRate        = 25
	defaultLinkCacheSize   = 1024
	defaultLinkCacheTTL    = 10 * time.Minute
	defaultArchiveBucket   = "vaultlink-batches"
	envPrefix              = "VAULTLINK_"
)

// ErrMissingBotToken is returned by RequireBot when the bot cannot start.
var ErrMissingBotToken = errors.New("VAULTLINK_BOT_TOKEN is required")

var validate = validator.New()

// Load reads configuration from environment variables falling back to
// defaults. A .env file in the working directory is applied first when
// present; real environment variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{
		Address:            readEnv("ADDRESS", defaultAddress),
		BotToken:           readEnv("BOT_TOKEN", ""),
		BotUsername:        strings.TrimPrefix(readEnv("BOT_USERNAME", ""), "@"),
		ChannelID:          parseInt64("CHANNEL_ID", 0),
		Store:              strings.ToLower(readEnv("STORE", StorePostgres)),
		DatabaseURL:        readEnv("DATABASE_URL", ""),
		IngestMode:         strings.ToLower(readEnv("INGEST_MODE", IngestInline)),
		RedisAddr:          readEnv("REDIS_ADDR", ""),
		RedisPassword:      readEnv("REDIS_PASSWORD", ""),
		RedisDB:            parseInt("REDIS_DB", 0),
		ProcessingPool:     parseInt("WORKERS", defaultWorkerCount),
		MediaGroupDelay:    parseDuration("MEDIA_GROUP_DELAY", defaultMediaGroupDelay),
		SessionTTL:         parseDuration("SESSION_TTL", defaultSessionTTL),
		PageSize:           parseInt("PAGE_SIZE", defaultPageSize),
		MaxQueryLength:     parseInt("MAX_QUERY_LENGTH", defaultMaxQueryLength),
		HandlerConcurrency: parseInt("HANDLER_CONCURRENCY", defaultConcurrency),
		SendRate:           parseFloat("SEND_RATE", defaultSendRate),
		LinkCacheSize:      parseInt("LINK_CACHE_SIZE", defaultLinkCacheSize),
		LinkCacheTTL:       parseDuration("LINK_CACHE_TTL", defaultLinkCacheTTL),
		S3Endpoint:         readEnv("S3_ENDPOINT", ""),
		S3AccessKey:        readEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        readEnv("S3_SECRET_KEY", ""),
		S3Region:           readEnv("S3_REGION", "us-east-1"),
		S3UseSSL:           parseBool("S3_USE_SSL", false),
		ArchiveBucket:      readEnv("ARCHIVE_BUCKET", defaultArchiveBucket),
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// RequireBot checks the settings only the bot process needs.
func (c *Config) RequireBot() error {
	if c.BotToken == "" {
		return ErrMissingBotToken
	}
	return nil
}

// ArchiveEnabled reports whether batch archiving to object storage is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Endpoint != ""
}

// DeepLink builds the shareable URL for a link id, or returns the bare id
// when no bot username is configured.
func (c *Config) DeepLink(linkID string) string {
	if c.BotUsername == "" {
		return linkID
	}
	return "https://t.me/" + c.BotUsername + "?start=" + linkID
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v := readEnv(key, ""); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v := readEnv(key, ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if v := readEnv(key, ""); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v := readEnv(key, ""); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "1500ms" or "30m".
	if v := readEnv(key, ""); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
