package chathub

import (
	"context"
	"fmt"
	"sync"

	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/errs"
	"anonchat/backend/internal/pkg/logx"
	"anonchat/backend/internal/storage"
)

// MatcherService pairs users from the FIFO search queue.
type MatcherService struct {
	hub    *ManagerService
	relay  *RelayService
	queue  storage.SearchQueue
	blocks storage.BlockList

	// mu serialises queue mutation in this process. Every queue operation is
	// atomic in Redis, so an entry is never handed to two requesters.
	mu sync.Mutex
}

func NewMatcherService(hub *ManagerService, relay *RelayService, queue storage.SearchQueue, blocks storage.BlockList) *MatcherService {
	return &MatcherService{
		hub:    hub,
		relay:  relay,
		queue:  queue,
		blocks: blocks,
	}
}

// FindPartner pairs c with the oldest eligible waiting user or enqueues it.
func (m *MatcherService) FindPartner(ctx context.Context, c Client) error {
	userID := c.GetUserID()

	block, err := m.blocks.GetBlock(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check block status of %s: %w", userID, err)
	}
	if block != nil {
		c.Send(blockedNotification("", block))
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.relay.RoomOf(userID) != "" {
		return errs.New(errs.ErrAlreadyInRoom)
	}

	// Re-requests replace the old entry instead of duplicating it.
	if _, err := m.queue.RemoveUserFromSearchQueue(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear queue entries of %s: %w", userID, err)
	}

	for {
		entry, blocked, err := m.queue.PopEligible(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to dequeue partner: %w", err)
		}
		for _, b := range blocked {
			m.notifyBlocked(ctx, b)
		}
		if entry == nil {
			break
		}

		partner, ok := m.hub.Lookup(entry.UserID)
		if !ok || partner.ConnID() != entry.ConnID {
			logx.Info("Discarding dead queue entry", "user_id", entry.UserID, "conn_id", entry.ConnID)
			continue
		}
		if m.relay.RoomOf(entry.UserID) != "" {
			logx.Info("Discarding queue entry of user already in a room", "user_id", entry.UserID)
			continue
		}

		m.relay.OpenRoom(ctx, c, partner)
		return nil
	}

	err = m.queue.AddToSearchQueue(ctx, models.QueueEntry{
		UserID:   userID,
		Username: c.GetUsername(),
		ConnID:   c.ConnID(),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", userID, err)
	}

	c.Send(models.Notification{Type: models.NotifyWaiting})
	logx.Info("New match request added to queue", "user_id", userID)
	return nil
}

// notifyBlocked tells a waiting user that got blocked while queued.
func (m *MatcherService) notifyBlocked(ctx context.Context, entry models.QueueEntry) {
	logx.Info("Removed blocked user from queue", "user_id", entry.UserID)

	c, ok := m.hub.Lookup(entry.UserID)
	if !ok || c.ConnID() != entry.ConnID {
		return
	}

	block, err := m.blocks.GetBlock(ctx, entry.UserID)
	if err != nil || block == nil {
		c.Send(models.Notification{Type: models.NotifyBlocked})
		return
	}
	c.Send(blockedNotification("", block))
}

// RemoveConnection drops every queue entry owned by c.
func (m *MatcherService) RemoveConnection(ctx context.Context, c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.queue.RemoveConnFromSearchQueue(ctx, c.ConnID())
	if err != nil {
		logx.Error(err, "Failed to remove connection from queue", "conn_id", c.ConnID())
		return
	}
	if n > 0 {
		logx.Info("User removed from queue due to disconnect", "user_id", c.GetUserID(), "removed", n)
	}
}
