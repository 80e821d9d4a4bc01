package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"anonchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const banKeyPrefix = "ban:"

func banKey(userID string) string {
	return banKeyPrefix + userID
}

// BlockUser upserts the block entry. Redis expires the key at ExpiresAt.
func (s *Service) BlockUser(ctx context.Context, entry models.BlockEntry) error {
	if !entry.ExpiresAt.After(entry.BlockedAt) {
		return errors.New("block entry must expire after it was issued")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.Redis.SetArgs(ctx, banKey(entry.UserID), data, redis.SetArgs{
		ExpireAt: entry.ExpiresAt,
	}).Err()
}

func (s *Service) GetBlock(ctx context.Context, userID string) (*models.BlockEntry, error) {
	raw, err := s.Redis.Get(ctx, banKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry models.BlockEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	// The key may outlive ExpiresAt by a little; the timestamp is authoritative.
	if !entry.ActiveAt(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

// IsUserBanned перевіряє статус бану в Redis
func (s *Service) IsUserBanned(ctx context.Context, userID string) (bool, error) {
	entry, err := s.GetBlock(ctx, userID)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}
