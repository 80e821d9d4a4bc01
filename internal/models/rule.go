package models

import (
	"time"

	"github.com/lib/pq"
)

// ViolationRule is a moderation rule. Rules are administered elsewhere; this
// service only reads the active ones.
type ViolationRule struct {
	ID        uint           `gorm:"primaryKey"`
	Type      string         `gorm:"type:text;not null"`
	Words     pq.StringArray `gorm:"type:text[];not null"`
	Message   string         `gorm:"type:text;not null"`
	IsActive  bool           `gorm:"not null;default:true;index"`
	CreatedAt time.Time
}

// Violation is the outcome of one matched rule.
type Violation struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
