package chathub_test

import (
	"context"
	"sync"
	"time"

	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"
)

// memStore is an in-memory storage.Storage with the same queue and block
// semantics as the Redis implementation.
type memStore struct {
	mu       sync.Mutex
	queue    []models.QueueEntry // oldest first
	blocks   map[string]models.BlockEntry
	rooms    map[string]*models.ChatRoom
	messages []models.ChatHistory
	counters map[string]*models.StrikeCounter
	applied  map[string]bool

	saveMessageErr error
	closeRoomErr   error
	getBlockErr    error
}

var _ storage.Storage = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		blocks:   make(map[string]models.BlockEntry),
		rooms:    make(map[string]*models.ChatRoom),
		counters: make(map[string]*models.StrikeCounter),
		applied:  make(map[string]bool),
	}
}

func (s *memStore) SaveRoom(_ context.Context, room *models.ChatRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *room
	s.rooms[room.RoomID] = &cp
	return nil
}

func (s *memStore) CloseRoom(_ context.Context, roomID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeRoomErr != nil {
		return s.closeRoomErr
	}
	if r, ok := s.rooms[roomID]; ok && r.IsActive {
		r.IsActive = false
		r.EndedAt = &endedAt
	}
	return nil
}

func (s *memStore) GetRoomByID(_ context.Context, roomID string) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, storage.ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) GetActiveRoomIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.rooms {
		if r.IsActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) SaveMessage(_ context.Context, msg *models.ChatHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveMessageErr != nil {
		return s.saveMessageErr
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *memStore) GetChatHistory(_ context.Context, roomID string, limit int) ([]models.ChatHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatHistory
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStore) AddToSearchQueue(_ context.Context, entry models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, entry)
	return nil
}

func (s *memStore) PopEligible(_ context.Context, excludeUserID string) (*models.QueueEntry, []models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blocked []models.QueueEntry
	for len(s.queue) > 0 {
		entry := s.queue[0]
		s.queue = s.queue[1:]

		if entry.UserID == excludeUserID {
			continue
		}
		if b, ok := s.blocks[entry.UserID]; ok && b.ActiveAt(time.Now()) {
			blocked = append(blocked, entry)
			continue
		}
		return &entry, blocked, nil
	}
	return nil, blocked, nil
}

func (s *memStore) removeWhere(match func(models.QueueEntry) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.queue[:0]
	removed := 0
	for _, e := range s.queue {
		if match(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.queue = kept
	return removed
}

func (s *memStore) RemoveUserFromSearchQueue(_ context.Context, userID string) (int, error) {
	return s.removeWhere(func(e models.QueueEntry) bool { return e.UserID == userID }), nil
}

func (s *memStore) RemoveConnFromSearchQueue(_ context.Context, connID string) (int, error) {
	return s.removeWhere(func(e models.QueueEntry) bool { return e.ConnID == connID }), nil
}

func (s *memStore) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *memStore) BlockUser(_ context.Context, entry models.BlockEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[entry.UserID] = entry
	return nil
}

func (s *memStore) GetBlock(_ context.Context, userID string) (*models.BlockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getBlockErr != nil {
		return nil, s.getBlockErr
	}
	b, ok := s.blocks[userID]
	if !ok || !b.ActiveAt(time.Now()) {
		return nil, nil
	}
	return &b, nil
}

func (s *memStore) IsUserBanned(ctx context.Context, userID string) (bool, error) {
	b, err := s.GetBlock(ctx, userID)
	return b != nil, err
}

func (s *memStore) GetActiveRules(_ context.Context) ([]models.ViolationRule, error) {
	return nil, nil
}

func (s *memStore) ApplyStrike(_ context.Context, eventID, userID string, apply func(*models.StrikeCounter) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied[eventID] {
		return false, nil
	}
	counter := models.StrikeCounter{UserID: userID}
	if c, ok := s.counters[userID]; ok {
		counter = *c
	}
	// apply may call BlockUser, which takes the lock.
	s.mu.Unlock()
	err := apply(&counter)
	s.mu.Lock()
	if err != nil {
		return false, err
	}
	s.applied[eventID] = true
	s.counters[userID] = &counter
	return true, nil
}

func (s *memStore) GetStrikeCounter(_ context.Context, userID string) (*models.StrikeCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) block(userID string, d time.Duration) {
	now := time.Now()
	_ = s.BlockUser(context.Background(), models.BlockEntry{
		UserID:    userID,
		BlockedAt: now,
		ExpiresAt: now.Add(d),
		Reason:    "Exceeded 3 strikes",
	})
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChatMessageEvent
}

func (p *recordingPublisher) Publish(evt models.ChatMessageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) Events() []models.ChatMessageEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChatMessageEvent(nil), p.events...)
}
