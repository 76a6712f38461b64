package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/logging"
)

const (
	DefaultConcurrency = 2
	MaxConcurrency     = 50
)

var ErrPoolClosed = errors.New("task: pool closed")

type HandleFunc func(ctx context.Context, rec Record) error

// Job is one record plus the callback that settles its delivery.
type Job struct {
	Ctx    context.Context
	Record Record
	Done   func(error)
}

// Pool runs jobs on a fixed number of goroutines.
type Pool struct {
	handle HandleFunc
	jobs   chan Job
	wg     sync.WaitGroup
	log    *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewPool(concurrency int, handle HandleFunc, log *zap.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	p := &Pool{
		handle: handle,
		jobs:   make(chan Job, concurrency*2),
		log:    logging.OrNop(log),
	}
	p.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go p.work(i)
	}
	return p
}

func (p *Pool) work(workerID int) {
	defer p.wg.Done()
	for j := range p.jobs {
		err := p.run(j)
		if err != nil {
			p.log.Warn("job failed", zap.Int("worker", workerID), zap.String("task_id", j.Record.TaskID), zap.Error(err))
		}
		if j.Done != nil {
			j.Done(err)
		}
	}
}

func (p *Pool) run(j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	ctx := j.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return p.handle(ctx, j.Record)
}

// Submit blocks until a worker slot frees up or ctx ends.
func (p *Pool) Submit(ctx context.Context, j Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
