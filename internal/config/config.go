// Package config loads the environment-driven settings shared by the relay server
// and the moderation workers.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting read from the environment. Not every binary uses every
// field.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        int    `envconfig:"PORT" default:"8080"`

	DatabaseDSN   string `envconfig:"DATABASE_DSN" default:"host=localhost user=user password=password dbname=anonchat port=5432 sslmode=disable"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6380"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret      string   `envconfig:"JWT_SECRET"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`

	BlockThreshold       int           `envconfig:"BLOCK_THRESHOLD" default:"3"`
	BlockDurationMinutes int           `envconfig:"BLOCK_DURATION_MINUTES" default:"10"`
	RulesCacheTTL        time.Duration `envconfig:"RULES_CACHE_TTL" default:"30s"`
	SeedRules            bool          `envconfig:"SEED_RULES" default:"false"`

	ChatStream    string        `envconfig:"CHAT_STREAM" default:"chat_messages"`
	StrikeStream  string        `envconfig:"STRIKE_STREAM" default:"strikes"`
	ConsumerGroup string        `envconfig:"CONSUMER_GROUP"`
	ConsumerName  string        `envconfig:"CONSUMER_NAME"`
	ClaimMinIdle  time.Duration `envconfig:"CLAIM_MIN_IDLE" default:"30s"`
	PublishBuffer int           `envconfig:"PUBLISH_BUFFER" default:"1024"`

	TelegramBotToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAlertChatID int64  `envconfig:"TELEGRAM_ALERT_CHAT_ID"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port number %d is outside the allowed range (1024-65535)", c.Port)
	}
	if c.BlockThreshold < 1 {
		return fmt.Errorf("BLOCK_THRESHOLD must be at least 1, got %d", c.BlockThreshold)
	}
	if c.BlockDurationMinutes < 1 {
		return fmt.Errorf("BLOCK_DURATION_MINUTES must be at least 1, got %d", c.BlockDurationMinutes)
	}
	if c.RulesCacheTTL < 0 {
		return fmt.Errorf("RULES_CACHE_TTL must not be negative")
	}
	if c.PublishBuffer < 1 {
		return fmt.Errorf("PUBLISH_BUFFER must be at least 1, got %d", c.PublishBuffer)
	}
	if !c.IsDevelopment() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in %s environment", c.Environment)
	}

	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// BlockDuration is how long a block entry stays active.
func (c *Config) BlockDuration() time.Duration {
	return time.Duration(c.BlockDurationMinutes) * time.Minute
}

// Group returns the consumer group for a worker role, defaulting to the role name.
func (c *Config) Group(role string) string {
	if c.ConsumerGroup != "" {
		return c.ConsumerGroup
	}
	return role
}

// Consumer returns this process's consumer name within a group, defaulting to
// <role>-<hostname>-<pid>.
func (c *Config) Consumer(role string) string {
	if c.ConsumerName != "" {
		return c.ConsumerName
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return fmt.Sprintf("%s-%s-%d", role, host, os.Getpid())
}
