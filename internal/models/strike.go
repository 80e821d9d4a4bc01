package models

import "time"

// ChatMessageEvent travels on the chat message channel from the relay to the
// detector. ID is the relayed message id.
type ChatMessageEvent struct {
	ID     string    `json:"id"`
	UserID string    `json:"userId"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// StrikeEvent travels on the strike channel from the detector to the ledger.
// ID is copied from the source ChatMessageEvent so redeliveries collapse.
type StrikeEvent struct {
	ID         string      `json:"id"`
	UserID     string      `json:"userId"`
	Violations []Violation `json:"violations"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// StrikeCounter tracks strikes per user. StrikeCount resets on every block.
type StrikeCounter struct {
	UserID       string `gorm:"primaryKey"`
	StrikeCount  int    `gorm:"not null;default:0"`
	TotalBlocks  int    `gorm:"not null;default:0"`
	LastStrikeAt time.Time
}

// ProcessedStrike records strike event ids already applied to a counter.
type ProcessedStrike struct {
	EventID   string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	CreatedAt time.Time
}

// BlockEntry is a time-boxed communication block.
type BlockEntry struct {
	UserID    string    `json:"userId"`
	BlockedAt time.Time `json:"blockedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Reason    string    `json:"reason"`
}

// ActiveAt reports whether the block still applies at t.
func (b *BlockEntry) ActiveAt(t time.Time) bool {
	return b != nil && t.Before(b.ExpiresAt)
}
