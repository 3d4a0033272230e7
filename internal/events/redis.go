package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream transfer events are appended to.
const DefaultStream = "bunny:transfers"

// RedisSink appends events to a Redis stream so consumers can follow them
// with XREAD / consumer groups.
type RedisSink struct {
	cache  *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink builds a stream sink. An empty stream name uses DefaultStream;
// maxLen > 0 trims the stream approximately to that many entries.
func NewRedisSink(cache *redis.Client, stream string, maxLen int64) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{cache: cache, stream: stream, maxLen: maxLen}
}

// Emit appends the event to the stream.
func (s *RedisSink) Emit(ctx context.Context, event Transfer) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":     event.ID,
			"kind":   KindTransfer,
			"from":   optional(event.From),
			"to":     optional(event.To),
			"amount": event.Amount.Dec(),
			"at":     event.At.Format(time.RFC3339Nano),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.cache.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("append transfer event to %s: %w", s.stream, err)
	}
	return nil
}
