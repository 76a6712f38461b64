package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/nutribot/internal/session"
	"github.com/suPer8Hu/nutribot/internal/store/redisstore"
)

func TestTracker_Lifecycle(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	tr := NewTracker(store, time.Minute, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Begin(ctx, "t1", 7))
	busy, err := tr.InFlight(ctx, 7)
	require.NoError(t, err)
	assert.True(t, busy)

	v, found, err := store.Get(ctx, session.TaskStatusKey("7"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "processing", v)

	require.NoError(t, tr.Finish(ctx, "t1", 7, StatusCompleted))
	busy, err = tr.InFlight(ctx, 7)
	require.NoError(t, err)
	assert.False(t, busy)

	st, found, err := tr.Status(ctx, "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusCompleted, st)

	err = tr.Finish(ctx, "t1", 7, StatusFailed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	st, _, _ = tr.Status(ctx, "t1")
	assert.Equal(t, StatusCompleted, st, "terminal status is never rewritten")
}

func TestTracker_RejectsNonTerminalTarget(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	tr := NewTracker(store, 0, 0)
	require.NoError(t, tr.Begin(context.Background(), "t1", 1))
	assert.ErrorIs(t, tr.Finish(context.Background(), "t1", 1, StatusProcessing), ErrInvalidTransition)
}

func TestTracker_ProcessingExpires(t *testing.T) {
	store, mr := redisstore.NewTest(t)
	tr := NewTracker(store, time.Minute, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Begin(ctx, "t1", 3))
	mr.FastForward(61 * time.Second)

	busy, err := tr.InFlight(ctx, 3)
	require.NoError(t, err)
	assert.False(t, busy, "a dead worker must not block the user forever")

	require.NoError(t, tr.Finish(ctx, "t1", 3, StatusFailed))
	st, found, err := tr.Status(ctx, "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusFailed, st)
}

func TestTracker_NewTaskReopensGate(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	tr := NewTracker(store, time.Minute, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Begin(ctx, "t1", 3))
	require.NoError(t, tr.Finish(ctx, "t1", 3, StatusFailed))
	require.NoError(t, tr.Begin(ctx, "t2", 3))

	busy, err := tr.InFlight(ctx, 3)
	require.NoError(t, err)
	assert.True(t, busy)
}

func TestDecode(t *testing.T) {
	rec, err := Decode([]byte(`{"task_id":"abc","chat_id":5,"user_query":"hi","rephrased_query":""}`))
	require.NoError(t, err)
	assert.Equal(t, TypeLLM, rec.Type)
	assert.Equal(t, "hi", rec.Query())

	_, err = Decode([]byte(`{"chat_id":5}`))
	assert.ErrorIs(t, err, ErrBadRecord)
	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadRecord)
}

func TestTracker_LateFinishKeepsNewerTaskGate(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	tr := NewTracker(store, time.Minute, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Begin(ctx, "old", 3))
	require.NoError(t, tr.Begin(ctx, "new", 3))
	require.NoError(t, tr.Finish(ctx, "old", 3, StatusCompleted))

	busy, err := tr.InFlight(ctx, 3)
	require.NoError(t, err)
	assert.True(t, busy, "older task must not reopen the gate")

	st, _, err := tr.Status(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st)

	require.NoError(t, tr.Finish(ctx, "new", 3, StatusFailed))
	busy, err = tr.InFlight(ctx, 3)
	require.NoError(t, err)
	assert.False(t, busy)
}
