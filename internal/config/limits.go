package config

import "time"

const (
	// Moderation
	DefaultBlockThreshold     = 3
	DefaultBlockDuration      = 10 * time.Minute
	DefaultRulesCacheTTL      = 30 * time.Second
	DefaultClaimMinIdle       = 30 * time.Second
	DefaultStreamMaxLen       = 100000
	DefaultPublishTimeout     = 2 * time.Second
	DefaultConsumerBatchSize  = 16
	DefaultConsumerBlockAfter = 5 * time.Second

	// Chat
	MaxMessageLength    = 2000
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200

	// Per-connection and per-IP rate limits
	MessagesPerSecond = 5
	MessageBurst      = 10
	UpgradesPerSecond = 2
	UpgradeBurst      = 5
)
