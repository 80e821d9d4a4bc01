package chathub

import (
	"context"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/logx"
)

// MessagePublisher hands relayed messages to moderation. Publish must not block.
type MessagePublisher interface {
	Publish(evt models.ChatMessageEvent)
}

// EventStream is the durable channel behind a StreamPublisher.
type EventStream interface {
	Publish(ctx context.Context, v any) (string, error)
}

const publishAttempts = 3

// StreamPublisher buffers events in memory and appends them to a stream from a
// single goroutine. Events that do not fit in the buffer are dropped.
type StreamPublisher struct {
	stream EventStream
	events chan models.ChatMessageEvent
	done   chan struct{}
}

func NewStreamPublisher(stream EventStream, buffer int) *StreamPublisher {
	return &StreamPublisher{
		stream: stream,
		events: make(chan models.ChatMessageEvent, buffer),
		done:   make(chan struct{}),
	}
}

func (p *StreamPublisher) Publish(evt models.ChatMessageEvent) {
	select {
	case p.events <- evt:
	default:
		logx.Warn("Moderation buffer full, dropping message", "message_id", evt.ID, "user_id", evt.UserID)
	}
}

// Run drains the buffer until ctx is cancelled, then flushes what is left.
func (p *StreamPublisher) Run(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case evt := <-p.events:
			p.send(ctx, evt)
		case <-ctx.Done():
			p.flush()
			return
		}
	}
}

// Done is closed once Run has returned.
func (p *StreamPublisher) Done() <-chan struct{} {
	return p.done
}

func (p *StreamPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultPublishTimeout)
	defer cancel()

	for {
		select {
		case evt := <-p.events:
			p.send(ctx, evt)
		default:
			return
		}
	}
}

func (p *StreamPublisher) send(ctx context.Context, evt models.ChatMessageEvent) {
	backoff := 100 * time.Millisecond

	for attempt := 1; ; attempt++ {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.DefaultPublishTimeout)
		_, err := p.stream.Publish(pubCtx, evt)
		cancel()
		if err == nil {
			return
		}
		if attempt == publishAttempts {
			logx.Error(err, "Dropping message after failed publishes", "message_id", evt.ID, "attempts", attempt)
			return
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			logx.Error(err, "Dropping message on shutdown", "message_id", evt.ID)
			return
		}
	}
}
