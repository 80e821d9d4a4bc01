// Package broker provides durable at-least-once channels between the relay and the
// moderation workers, backed by Redis Streams and consumer groups.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/pkg/logx"

	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// ErrPoison marks a message that can never be handled. Consume acknowledges it
// instead of leaving it pending.
var ErrPoison = errors.New("poison message")

// Poison wraps err so that Consume drops the message.
func Poison(err error) error {
	return fmt.Errorf("%w: %v", ErrPoison, err)
}

// Message is one delivered stream entry.
type Message struct {
	ID      string
	Payload []byte
}

// Decode unmarshals the payload into v. Decode failures are poison.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return Poison(err)
	}
	return nil
}

// Handler processes one message. A nil return acknowledges it; any other error
// except ErrPoison leaves it pending for redelivery.
type Handler func(ctx context.Context, msg Message) error

type Stream struct {
	rdb    *redis.Client
	name   string
	maxLen int64
}

func NewStream(rdb *redis.Client, name string) *Stream {
	return &Stream{
		rdb:    rdb,
		name:   name,
		maxLen: config.DefaultStreamMaxLen,
	}
}

func (s *Stream) Name() string { return s.name }

// Publish appends v as JSON and returns the entry id.
func (s *Stream) Publish(ctx context.Context, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s entry: %w", s.name, err)
	}

	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.name,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{payloadField: data},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", s.name, err)
	}
	return id, nil
}

// ConsumerOptions identify a consumer within its group.
type ConsumerOptions struct {
	Group    string
	Consumer string
	// ClaimMinIdle is how long a delivered but unacknowledged entry waits before
	// another delivery attempt.
	ClaimMinIdle time.Duration
	BatchSize    int64
	Block        time.Duration
}

func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.ClaimMinIdle <= 0 {
		o.ClaimMinIdle = config.DefaultClaimMinIdle
	}
	if o.BatchSize <= 0 {
		o.BatchSize = config.DefaultConsumerBatchSize
	}
	if o.Block <= 0 {
		o.Block = config.DefaultConsumerBlockAfter
	}
	return o
}

// Consume delivers entries to handler until ctx is cancelled. Entries left pending
// by a failed handler or a crashed consumer are reclaimed after ClaimMinIdle.
func (s *Stream) Consume(ctx context.Context, opts ConsumerOptions, handler Handler) error {
	opts = opts.withDefaults()
	if opts.Group == "" || opts.Consumer == "" {
		return errors.New("consumer group and consumer name are required")
	}

	log := logx.Component("broker").With().
		Str("stream", s.name).
		Str("group", opts.Group).
		Str("consumer", opts.Consumer).
		Logger()

	if err := s.ensureGroup(ctx, opts.Group); err != nil {
		return err
	}
	log.Info().Msg("Consumer started")

	cursor := "0-0"
	lastClaim := time.Time{}

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Consumer stopped")
			return nil
		}

		if time.Since(lastClaim) >= opts.ClaimMinIdle/2 {
			msgs, next, err := s.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   s.name,
				Group:    opts.Group,
				Consumer: opts.Consumer,
				MinIdle:  opts.ClaimMinIdle,
				Start:    cursor,
				Count:    opts.BatchSize,
			}).Result()
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Failed to reclaim pending entries")
			}
			if len(msgs) > 0 {
				log.Warn().Int("count", len(msgs)).Msg("Redelivering pending entries")
			}
			for _, m := range msgs {
				s.dispatch(ctx, opts.Group, m, handler)
			}
			if err == nil {
				cursor = next
			}
			// A full sweep has finished once Redis hands back the start cursor.
			if cursor == "0-0" || err != nil {
				lastClaim = time.Now()
			}
		}

		streams, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    opts.Group,
			Consumer: opts.Consumer,
			Streams:  []string{s.name, ">"},
			Count:    opts.BatchSize,
			Block:    opts.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Msg("Failed to read from stream")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, st := range streams {
			for _, m := range st.Messages {
				s.dispatch(ctx, opts.Group, m, handler)
			}
		}
	}
}

func (s *Stream) ensureGroup(ctx context.Context, group string) error {
	err := s.rdb.XGroupCreateMkStream(ctx, s.name, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", group, s.name, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func (s *Stream) dispatch(ctx context.Context, group string, m redis.XMessage, handler Handler) {
	msg, err := toMessage(m)
	if err == nil {
		err = handler(ctx, msg)
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrPoison):
		logx.Error(err, "Dropping undeliverable entry", "stream", s.name, "entry_id", m.ID)
	default:
		logx.Warn("Handler failed, entry left pending", "stream", s.name, "entry_id", m.ID, "error", err.Error())
		return
	}

	if err := s.rdb.XAck(ctx, s.name, group, m.ID).Err(); err != nil {
		logx.Error(err, "Failed to acknowledge entry", "stream", s.name, "entry_id", m.ID)
	}
}

func toMessage(m redis.XMessage) (Message, error) {
	raw, ok := m.Values[payloadField]
	if !ok {
		return Message{}, Poison(fmt.Errorf("entry %s has no %q field", m.ID, payloadField))
	}
	switch v := raw.(type) {
	case string:
		return Message{ID: m.ID, Payload: []byte(v)}, nil
	case []byte:
		return Message{ID: m.ID, Payload: v}, nil
	}
	return Message{}, Poison(fmt.Errorf("entry %s has unexpected payload type %T", m.ID, raw))
}
