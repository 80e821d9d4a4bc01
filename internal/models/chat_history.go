package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatHistory is a persisted chat message. Rows are append-only.
type ChatHistory struct {
	gorm.Model

	// MessageID is the id assigned at relay time and reused as the moderation event id.
	MessageID  string    `gorm:"type:text;not null;uniqueIndex"`
	RoomID     string    `gorm:"type:text;not null;index:idx_room_sent,priority:1"`
	SenderID   string    `gorm:"type:text;not null;index"`
	SenderName string    `gorm:"type:text"`
	Content    string    `gorm:"type:text;not null"`
	SentAt     time.Time `gorm:"not null;index:idx_room_sent,priority:2"`
}

// HistoryItem is one message of a history response, seen from the requester.
type HistoryItem struct {
	Username string    `json:"username"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
	IsOwn    bool      `json:"isOwn"`
}
