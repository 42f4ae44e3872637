package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-buddy-chat/internal/domain"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(2, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var ran int32
	done := make(chan struct{})
	err := p.Submit(func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("ran = %d, want 1", ran)
	}
}

func TestPoolSubmitNil(t *testing.T) {
	p := NewPool(1, testLogger())
	if err := p.Submit(nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestPoolQueueFull(t *testing.T) {
	// Pool never started, so nothing drains the queue.
	p := NewPool(1, testLogger())
	task := func(ctx context.Context) error { return nil }

	var err error
	for i := 0; i < 64; i++ {
		if err = p.Submit(task); err != nil {
			break
		}
	}
	if !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}
