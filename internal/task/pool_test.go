package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPool_RunsEveryJob(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var handled atomic.Int32
	p := NewPool(3, func(context.Context, Record) error {
		handled.Add(1)
		return nil
	}, nil)

	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(context.Background(), Job{
			Record: Record{TaskID: "t"},
			Done:   func(err error) { assert.NoError(t, err); wg.Done() },
		}))
	}
	wg.Wait()
	p.Close()
	assert.Equal(t, int32(20), handled.Load())
}

func TestPool_PanicBecomesError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := NewPool(1, func(context.Context, Record) error { panic("kaboom") }, nil)
	got := make(chan error, 1)
	require.NoError(t, p.Submit(context.Background(), Job{Done: func(err error) { got <- err }}))
	err := <-got
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	p.Close()
}

func TestPool_SubmitAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := NewPool(1, func(context.Context, Record) error { return nil }, nil)
	p.Close()
	p.Close()
	assert.ErrorIs(t, p.Submit(context.Background(), Job{}), ErrPoolClosed)
}

type fakeDelivery struct {
	body   []byte
	acked  atomic.Bool
	nacked atomic.Bool
}

func (d *fakeDelivery) Body() []byte { return d.body }
func (d *fakeDelivery) Ack() error   { d.acked.Store(true); return nil }
func (d *fakeDelivery) Nack() error  { d.nacked.Store(true); return nil }

func TestWorker_AcksAndNacks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	w := NewWorker(func(_ context.Context, rec Record) error {
		if rec.TaskID == "bad" {
			return errBoom
		}
		return nil
	}, 2, nil)

	good := &fakeDelivery{body: []byte(`{"type":"llm_task","task_id":"good","chat_id":1}`)}
	failing := &fakeDelivery{body: []byte(`{"type":"llm_task","task_id":"bad","chat_id":1}`)}
	garbage := &fakeDelivery{body: []byte(`{oops`)}

	ch := make(chan Delivery, 3)
	ch <- good
	ch <- failing
	ch <- garbage
	close(ch)

	err := w.Run(context.Background(), ch)
	require.True(t, errors.Is(err, ErrDeliveriesClosed))

	assert.True(t, good.acked.Load())
	assert.False(t, good.nacked.Load())
	assert.True(t, failing.nacked.Load())
	assert.False(t, failing.acked.Load())
	assert.True(t, garbage.nacked.Load())
}

func TestWorker_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	w := NewWorker(func(context.Context, Record) error { return nil }, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx, make(chan Delivery)))
}
