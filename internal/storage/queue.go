package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/logx"

	"github.com/redis/go-redis/v9"
)

// SearchQueueKey is the Redis list holding waiting users. New entries are pushed
// on the left and the oldest is taken from the right.
const SearchQueueKey = "chat:queue"

func encodeEntry(entry models.QueueEntry) (string, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeEntry(raw string) (models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return entry, err
	}
	if entry.UserID == "" || entry.ConnID == "" {
		return entry, fmt.Errorf("queue entry missing userId or connId")
	}
	return entry, nil
}

// AddToSearchQueue додає користувача до черги пошуку в Redis
func (s *Service) AddToSearchQueue(ctx context.Context, entry models.QueueEntry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return s.Redis.LPush(ctx, SearchQueueKey, raw).Err()
}

// popEligibleScript walks the queue from its oldest end. Own entries and
// malformed entries are discarded, entries of banned users are discarded and
// reported. The first remaining entry is returned in slot 1 ("" when none).
var popEligibleScript = redis.NewScript(`
local result = {''}
while true do
	local raw = redis.call('RPOP', KEYS[1])
	if not raw then
		return result
	end
	local ok, entry = pcall(cjson.decode, raw)
	if ok and type(entry) == 'table' and entry.userId and entry.connId and entry.userId ~= ARGV[1] then
		if redis.call('EXISTS', ARGV[2] .. entry.userId) == 1 then
			table.insert(result, raw)
		else
			result[1] = raw
			return result
		end
	end
end
`)

func (s *Service) PopEligible(ctx context.Context, excludeUserID string) (*models.QueueEntry, []models.QueueEntry, error) {
	res, err := popEligibleScript.Run(ctx, s.Redis, []string{SearchQueueKey}, excludeUserID, banKeyPrefix).StringSlice()
	if err != nil {
		return nil, nil, err
	}
	return parsePopResult(res)
}

func parsePopResult(res []string) (*models.QueueEntry, []models.QueueEntry, error) {
	if len(res) == 0 {
		return nil, nil, fmt.Errorf("empty reply from queue script")
	}

	var blocked []models.QueueEntry
	for _, raw := range res[1:] {
		entry, err := decodeEntry(raw)
		if err != nil {
			logx.Warn("Dropping malformed search queue entry", "raw", raw, "error", err.Error())
			continue
		}
		blocked = append(blocked, entry)
	}

	if res[0] == "" {
		return nil, blocked, nil
	}
	entry, err := decodeEntry(res[0])
	if err != nil {
		return nil, blocked, err
	}
	return &entry, blocked, nil
}

// RemoveUserFromSearchQueue видаляє всі записи користувача з черги пошуку
func (s *Service) RemoveUserFromSearchQueue(ctx context.Context, userID string) (int, error) {
	return s.removeMatching(ctx, func(e models.QueueEntry) bool { return e.UserID == userID })
}

// RemoveConnFromSearchQueue removes entries owned by one connection.
func (s *Service) RemoveConnFromSearchQueue(ctx context.Context, connID string) (int, error) {
	return s.removeMatching(ctx, func(e models.QueueEntry) bool { return e.ConnID == connID })
}

func (s *Service) removeMatching(ctx context.Context, match func(models.QueueEntry) bool) (int, error) {
	raws, err := s.Redis.LRange(ctx, SearchQueueKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, raw := range raws {
		entry, err := decodeEntry(raw)
		if err != nil || !match(entry) {
			continue
		}
		n, err := s.Redis.LRem(ctx, SearchQueueKey, 0, raw).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}
