// Package blocker keeps the per-user strike counters and turns enough strikes into
// a time-boxed block.
package blocker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/logx"
	"anonchat/backend/internal/storage"
)

// Alerter is told about every block after it has been committed.
type Alerter interface {
	BlockIssued(ctx context.Context, entry models.BlockEntry, counter models.StrikeCounter) error
}

type Ledger struct {
	strikes   storage.StrikeStore
	blocks    storage.BlockList
	threshold int
	duration  time.Duration
	alerter   Alerter
	now       func() time.Time
}

func NewLedger(strikes storage.StrikeStore, blocks storage.BlockList, threshold int, duration time.Duration) *Ledger {
	return &Ledger{
		strikes:   strikes,
		blocks:    blocks,
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
	}
}

// WithAlerter sets an optional alerter. Alert failures never fail a strike.
func (l *Ledger) WithAlerter(a Alerter) *Ledger {
	l.alerter = a
	return l
}

// RecordStrike applies one strike. It returns the issued block, or nil when the
// strike stayed under the threshold or evt was already recorded.
func (l *Ledger) RecordStrike(ctx context.Context, evt models.StrikeEvent) (*models.BlockEntry, error) {
	if evt.UserID == "" {
		return nil, errors.New("strike event without userId")
	}

	var (
		issued  *models.BlockEntry
		counter models.StrikeCounter
	)

	applied, err := l.strikes.ApplyStrike(ctx, evt.ID, evt.UserID, func(c *models.StrikeCounter) error {
		issued = nil
		now := l.now().UTC()

		c.StrikeCount++
		c.LastStrikeAt = now

		if c.StrikeCount >= l.threshold {
			entry := models.BlockEntry{
				UserID:    c.UserID,
				BlockedAt: now,
				ExpiresAt: now.Add(l.duration),
				Reason:    fmt.Sprintf("Exceeded %d strikes", l.threshold),
			}
			if err := l.blocks.BlockUser(ctx, entry); err != nil {
				return fmt.Errorf("failed to block %s: %w", c.UserID, err)
			}
			c.StrikeCount = 0
			c.TotalBlocks++
			issued = &entry
		}

		counter = *c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record strike for %s: %w", evt.UserID, err)
	}
	if !applied {
		logx.Info("Duplicate strike ignored", "user_id", evt.UserID, "event_id", evt.ID)
		return nil, nil
	}

	if issued == nil {
		logx.Info("Strike recorded", "user_id", evt.UserID, "strike_count", counter.StrikeCount)
		return nil, nil
	}

	logx.Info("User blocked",
		"user_id", evt.UserID,
		"expires_at", issued.ExpiresAt,
		"total_blocks", counter.TotalBlocks,
	)

	if l.alerter != nil {
		if err := l.alerter.BlockIssued(ctx, *issued, counter); err != nil {
			logx.Error(err, "Failed to send block alert", "user_id", evt.UserID)
		}
	}
	return issued, nil
}
