package blocker

import (
	"context"
	"errors"

	"anonchat/backend/internal/broker"
	"anonchat/backend/internal/models"
)

// Worker feeds strike events from the broker into the ledger.
type Worker struct {
	ledger *Ledger
}

func NewWorker(l *Ledger) *Worker {
	return &Worker{ledger: l}
}

// Handle is a broker.Handler.
func (w *Worker) Handle(ctx context.Context, msg broker.Message) error {
	var evt models.StrikeEvent
	if err := msg.Decode(&evt); err != nil {
		return err
	}
	if evt.UserID == "" {
		return broker.Poison(errors.New("strike event without userId"))
	}
	if evt.ID == "" {
		// Without an event id redeliveries cannot be told apart; fall back to the
		// stream entry id.
		evt.ID = "stream:" + msg.ID
	}

	_, err := w.ledger.RecordStrike(ctx, evt)
	return err
}
