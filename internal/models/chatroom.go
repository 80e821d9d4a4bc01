package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatRoom represents a 1-on-1 chat session between two users.
type ChatRoom struct {
	// RoomID is "room_<unix millis>_<uuid>".
	RoomID    string `gorm:"primaryKey"`
	User1ID   string `gorm:"not null;index"`
	User1Name string
	User2ID   string `gorm:"not null;index"`
	User2Name string
	// IsActive is false once EndedAt is set.
	IsActive  bool      `gorm:"index"`
	StartedAt time.Time `gorm:"not null;index"`
	EndedAt   *time.Time
}

// NewRoomID combines a timestamp with a random UUID so room ids are unique and
// cannot be guessed.
func NewRoomID(now time.Time) string {
	return fmt.Sprintf("room_%d_%s", now.UnixMilli(), uuid.NewString())
}

// HasParticipant reports whether userID is one of the two members.
func (r *ChatRoom) HasParticipant(userID string) bool {
	return r.User1ID == userID || r.User2ID == userID
}

// PartnerOf returns the other participant's id, or "" if userID is not a member.
func (r *ChatRoom) PartnerOf(userID string) string {
	switch userID {
	case r.User1ID:
		return r.User2ID
	case r.User2ID:
		return r.User1ID
	}
	return ""
}
