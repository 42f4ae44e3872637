package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRedis struct {
	counts  map[string]int64
	incrErr error
	expired map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: map[string]int64{}, expired: map[string]time.Duration{}}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, d time.Duration) error {
	f.expired[key] = d
	return nil
}

func (f *fakeRedis) Close() error { return nil }

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestMessageLimiterWindow(t *testing.T) {
	fr := newFakeRedis()
	l := NewMessageLimiter(fr, 2, time.Second, testLogger())
	ctx := context.Background()

	if !l.Allow(ctx, "c1") || !l.Allow(ctx, "c1") {
		t.Fatal("requests inside the limit denied")
	}
	if l.Allow(ctx, "c1") {
		t.Fatal("request beyond limit allowed")
	}
	if _, ok := fr.expired["chat_rate:c1"]; !ok {
		t.Fatal("window TTL not set on first increment")
	}
}

func TestMessageLimiterIsolatesConnections(t *testing.T) {
	l := NewMessageLimiter(newFakeRedis(), 1, time.Second, testLogger())
	ctx := context.Background()

	if !l.Allow(ctx, "c1") {
		t.Fatal("c1 denied")
	}
	if !l.Allow(ctx, "c2") {
		t.Fatal("c2 shares c1's window")
	}
}

func TestMessageLimiterFailsOpen(t *testing.T) {
	fr := newFakeRedis()
	fr.incrErr = errors.New("connection refused")
	l := NewMessageLimiter(fr, 1, time.Second, testLogger())

	if !l.Allow(context.Background(), "c1") {
		t.Fatal("limiter must fail open when Redis is down")
	}
}
