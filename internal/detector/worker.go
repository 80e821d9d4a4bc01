package detector

import (
	"context"
	"errors"
	"time"

	"anonchat/backend/internal/broker"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/logx"
)

// StrikePublisher is the outbound strike channel.
type StrikePublisher interface {
	Publish(ctx context.Context, v any) (string, error)
}

// Worker turns chat message events into strike events.
type Worker struct {
	detector *Detector
	strikes  StrikePublisher
}

func NewWorker(d *Detector, strikes StrikePublisher) *Worker {
	return &Worker{detector: d, strikes: strikes}
}

// Handle is a broker.Handler. It returns nil only once the message is fully
// processed, so a failed evaluation or publish is redelivered.
func (w *Worker) Handle(ctx context.Context, msg broker.Message) error {
	var evt models.ChatMessageEvent
	if err := msg.Decode(&evt); err != nil {
		return err
	}
	if evt.ID == "" || evt.UserID == "" {
		return broker.Poison(errors.New("chat message event without id or userId"))
	}

	violations, err := w.detector.Evaluate(ctx, evt.Text)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}

	strike := models.StrikeEvent{
		ID:         evt.ID,
		UserID:     evt.UserID,
		Violations: violations,
		OccurredAt: time.Now().UTC(),
	}
	if _, err := w.strikes.Publish(ctx, strike); err != nil {
		return err
	}

	logx.Info("Strike issued", "user_id", evt.UserID, "message_id", evt.ID, "violations", len(violations))
	return nil
}
