package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ai-buddy-chat/internal/domain"
)

// Task is one unit of background work, typically an AI generation call.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of workers. It keeps slow AI
// calls off the connection event path: the transport submits the call
// and keeps servicing other connections while it runs.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 8
	}
	return &Pool{
		jobs: make(chan Task, workers*4),
		quit: make(chan struct{}),
		n:    workers,
		log:  logger,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						p.log.Warn().Int("worker", id).Err(err).Msg("task error")
					}
				}
			}
		}(i)
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

// Submit enqueues a task without blocking. When the queue is saturated
// it returns domain.ErrQueueFull and the caller decides the fallback.
func (p *Pool) Submit(task func(ctx context.Context) error) error {
	if task == nil {
		return domain.ErrInvalidArgument
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return domain.ErrQueueFull
	}
}
