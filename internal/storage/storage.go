// Package storage implements the persistence the chat core depends on: Postgres
// (through gorm) for rooms, messages, rules and strike counters, and Redis for the
// matchmaking queue and the block list.
package storage

import (
	"context"
	"errors"
	"time"

	"anonchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var ErrRoomNotFound = errors.New("chat room not found")

// RoomStore is the durable record of rooms and their messages.
type RoomStore interface {
	SaveRoom(ctx context.Context, room *models.ChatRoom) error
	CloseRoom(ctx context.Context, roomID string, endedAt time.Time) error
	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	GetActiveRoomIDs(ctx context.Context) ([]string, error)

	SaveMessage(ctx context.Context, msg *models.ChatHistory) error
	GetChatHistory(ctx context.Context, roomID string, limit int) ([]models.ChatHistory, error)
}

// SearchQueue is the FIFO of users waiting for a partner. Entries are pushed on
// one end and popped from the other.
type SearchQueue interface {
	AddToSearchQueue(ctx context.Context, entry models.QueueEntry) error
	// PopEligible atomically removes and returns the oldest entry that does not
	// belong to excludeUserID and whose user is not blocked, or nil when none is
	// left. Entries of blocked users met on the way are removed and returned too.
	PopEligible(ctx context.Context, excludeUserID string) (*models.QueueEntry, []models.QueueEntry, error)
	RemoveUserFromSearchQueue(ctx context.Context, userID string) (int, error)
	RemoveConnFromSearchQueue(ctx context.Context, connID string) (int, error)
}

// BlockList holds self-expiring block entries, one per user.
type BlockList interface {
	// BlockUser creates or overwrites the user's entry.
	BlockUser(ctx context.Context, entry models.BlockEntry) error
	// GetBlock returns the active entry, or nil if there is none or it has expired.
	GetBlock(ctx context.Context, userID string) (*models.BlockEntry, error)
	IsUserBanned(ctx context.Context, userID string) (bool, error)
}

// RuleStore is a read-only view of the moderation rules.
type RuleStore interface {
	GetActiveRules(ctx context.Context) ([]models.ViolationRule, error)
}

// StrikeStore applies strikes to per-user counters.
type StrikeStore interface {
	// ApplyStrike runs apply against the user's counter as one atomic
	// read-modify-write. It returns false without calling apply when eventID was
	// already applied. An error from apply aborts the whole operation.
	ApplyStrike(ctx context.Context, eventID, userID string, apply func(counter *models.StrikeCounter) error) (bool, error)
	GetStrikeCounter(ctx context.Context, userID string) (*models.StrikeCounter, error)
}

// Storage is everything Service provides.
type Storage interface {
	RoomStore
	SearchQueue
	BlockList
	RuleStore
	StrikeStore
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// SaveRoom зберігає кімнату в PostgreSQL
func (s *Service) SaveRoom(ctx context.Context, room *models.ChatRoom) error {
	return s.DB.WithContext(ctx).Create(room).Error
}

// CloseRoom marks an active room as ended. Closing an already closed room is a no-op.
func (s *Service) CloseRoom(ctx context.Context, roomID string, endedAt time.Time) error {
	return s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  endedAt,
		}).Error
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom

	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetActiveRoomIDs повертає список усіх RoomID, які є активними в даний момент.
func (s *Service) GetActiveRoomIDs(ctx context.Context) ([]string, error) {
	var roomIDs []string

	if err := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("is_active = ?", true).
		Pluck("room_id", &roomIDs).Error; err != nil {
		return nil, err
	}
	return roomIDs, nil
}

func (s *Service) SaveMessage(ctx context.Context, msg *models.ChatHistory) error {
	return s.DB.WithContext(ctx).Create(msg).Error
}

// GetChatHistory returns up to limit most recent messages of a room, oldest first.
func (s *Service) GetChatHistory(ctx context.Context, roomID string, limit int) ([]models.ChatHistory, error) {
	var history []models.ChatHistory

	if err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("sent_at desc").Order("id desc").
		Limit(limit).
		Find(&history).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func (s *Service) GetActiveRules(ctx context.Context) ([]models.ViolationRule, error) {
	var rules []models.ViolationRule

	if err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id asc").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// SeedRules inserts rules when the rules table is empty and reports how many were
// written.
func (s *Service) SeedRules(ctx context.Context, rules []models.ViolationRule) (int, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.ViolationRule{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 || len(rules) == 0 {
		return 0, nil
	}
	if err := s.DB.WithContext(ctx).Create(&rules).Error; err != nil {
		return 0, err
	}
	return len(rules), nil
}
