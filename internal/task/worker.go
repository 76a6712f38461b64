package task

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/logging"
)

// Delivery is one message taken from the queue.
type Delivery interface {
	Body() []byte
	Ack() error
	// Nack rejects without requeue so the broker dead-letters the message.
	Nack() error
}

var ErrDeliveriesClosed = errors.New("task: delivery channel closed")

type Worker struct {
	pool *Pool
	log  *zap.Logger
}

func NewWorker(h HandleFunc, concurrency int, log *zap.Logger) *Worker {
	log = logging.OrNop(log)
	return &Worker{pool: NewPool(concurrency, h, log), log: log}
}

// Run feeds deliveries to the pool until ctx ends or the channel closes.
// Jobs already taken are finished before Run returns.
func (w *Worker) Run(ctx context.Context, deliveries <-chan Delivery) error {
	defer w.pool.Close()
	jobCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker shutting down")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			w.accept(ctx, jobCtx, d)
		}
	}
}

func (w *Worker) accept(ctx, jobCtx context.Context, d Delivery) {
	rec, err := Decode(d.Body())
	if err != nil {
		w.log.Warn("bad message", zap.Error(err))
		w.nack(d)
		return
	}
	job := Job{
		Ctx:    jobCtx,
		Record: rec,
		Done: func(err error) {
			if err != nil {
				w.nack(d)
				return
			}
			if err := d.Ack(); err != nil {
				w.log.Warn("ack failed", zap.String("task_id", rec.TaskID), zap.Error(err))
			}
		},
	}
	if err := w.pool.Submit(ctx, job); err != nil {
		if ctx.Err() != nil {
			// left unacked; the broker requeues it when the channel closes
			w.log.Info("shutdown before submit", zap.String("task_id", rec.TaskID))
			return
		}
		w.log.Warn("submit task", zap.String("task_id", rec.TaskID), zap.Error(err))
		w.nack(d)
	}
}

func (w *Worker) nack(d Delivery) {
	if err := d.Nack(); err != nil {
		w.log.Warn("nack failed", zap.Error(err))
	}
}
