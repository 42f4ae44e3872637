package redis

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// MessageLimiter is a fixed-window limiter shared through Redis, used
// for per-connection inbound frames when a Redis URL is configured.
// It fails open: a Redis hiccup must not silence the chat.
type MessageLimiter struct {
	client RedisClient
	limit  int
	window time.Duration
	log    *zerolog.Logger
}

func NewMessageLimiter(client RedisClient, limit int, window time.Duration, logger *zerolog.Logger) *MessageLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Second
	}
	return &MessageLimiter{client: client, limit: limit, window: window, log: logger}
}

func (m *MessageLimiter) Allow(ctx context.Context, connID string) bool {
	key := "chat_rate:" + connID
	count, err := m.client.Incr(ctx, key)
	if err != nil {
		m.log.Warn().Err(err).Msg("rate limiter incr failed, allowing")
		return true
	}
	if count == 1 {
		if err := m.client.Expire(ctx, key, m.window); err != nil {
			m.log.Warn().Err(err).Msg("rate limiter expire failed")
		}
	}
	return count <= int64(m.limit)
}

// Forget is a no-op: the window key carries a TTL and expires in Redis
// without any cleanup from this side.
func (m *MessageLimiter) Forget(connID string) {}
