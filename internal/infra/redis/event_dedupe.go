package redis

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"legal-docs-platform/internal/usecase"
)

var _ usecase.EventDeduper = (*EventDedupe)(nil)

const dedupeKeyPrefix = "webhook:event:"

// EventDedupe backs the webhook duplicate filter with Redis. Failures are
// treated as cache misses: losing the cache only means extra trips through
// the conditional status update.
type EventDedupe struct {
	cli RedisClient
	log *zerolog.Logger
}

func NewEventDedupe(c *Client, logger *zerolog.Logger) *EventDedupe {
	l := logger.With().Str("component", "EventDedupe").Logger()
	return &EventDedupe{cli: c, log: &l}
}

func (d *EventDedupe) Seen(ctx context.Context, eventID string) bool {
	found, err := d.cli.Exists(ctx, dedupeKeyPrefix+eventID)
	if err != nil {
		d.log.Warn().Err(err).Str("event_id", eventID).Msg("dedupe lookup failed, treating as miss")
		return false
	}
	return found
}

func (d *EventDedupe) MarkSeen(ctx context.Context, eventID string, ttl time.Duration) {
	if err := d.cli.Set(ctx, dedupeKeyPrefix+eventID, "1", ttl); err != nil {
		d.log.Warn().Err(err).Str("event_id", eventID).Msg("dedupe mark failed")
	}
}
