package chathub_test

import (
	"context"
	"time"

	"anonchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of storage.Storage for failure paths.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveRoom(ctx context.Context, room *models.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStorage) CloseRoom(ctx context.Context, roomID string, endedAt time.Time) error {
	args := m.Called(ctx, roomID, endedAt)
	return args.Error(0)
}

func (m *MockStorage) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) GetActiveRoomIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) SaveMessage(ctx context.Context, msg *models.ChatHistory) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetChatHistory(ctx context.Context, roomID string, limit int) ([]models.ChatHistory, error) {
	args := m.Called(ctx, roomID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatHistory), args.Error(1)
}

func (m *MockStorage) AddToSearchQueue(ctx context.Context, entry models.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStorage) PopEligible(ctx context.Context, excludeUserID string) (*models.QueueEntry, []models.QueueEntry, error) {
	args := m.Called(ctx, excludeUserID)
	var entry *models.QueueEntry
	if args.Get(0) != nil {
		entry = args.Get(0).(*models.QueueEntry)
	}
	var blocked []models.QueueEntry
	if args.Get(1) != nil {
		blocked = args.Get(1).([]models.QueueEntry)
	}
	return entry, blocked, args.Error(2)
}

func (m *MockStorage) RemoveUserFromSearchQueue(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) RemoveConnFromSearchQueue(ctx context.Context, connID string) (int, error) {
	args := m.Called(ctx, connID)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) BlockUser(ctx context.Context, entry models.BlockEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStorage) GetBlock(ctx context.Context, userID string) (*models.BlockEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BlockEntry), args.Error(1)
}

func (m *MockStorage) IsUserBanned(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) GetActiveRules(ctx context.Context) ([]models.ViolationRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ViolationRule), args.Error(1)
}

func (m *MockStorage) ApplyStrike(ctx context.Context, eventID, userID string, apply func(*models.StrikeCounter) error) (bool, error) {
	args := m.Called(ctx, eventID, userID, apply)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) GetStrikeCounter(ctx context.Context, userID string) (*models.StrikeCounter, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StrikeCounter), args.Error(1)
}
