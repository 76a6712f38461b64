package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/nutribot/internal/ai"
	"github.com/suPer8Hu/nutribot/internal/prompts"
	"github.com/suPer8Hu/nutribot/internal/session"
	"github.com/suPer8Hu/nutribot/internal/store/redisstore"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Diet, Parse(" Diet. "))
	assert.Equal(t, Medical, Parse("MEDICAL"))
	assert.Equal(t, Unknown, Parse("cooking"))
	assert.Equal(t, Unknown, Parse(""))
}

func TestLock_ConsumesExactlyTwice(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	l := NewLock(store, 2)
	ctx := context.Background()

	require.NoError(t, l.SetLocked(ctx, 1, Diet))

	for i := 0; i < 2; i++ {
		ok, err := l.CheckAndConsume(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		cur, err := l.Current(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, Diet, cur)
	}

	for i := 0; i < 3; i++ {
		ok, err := l.CheckAndConsume(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	n, err := l.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "counter never goes negative")
}

func TestLock_NoCounter(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	l := NewLock(store, 2)

	ok, err := l.CheckAndConsume(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, ok)

	cur, err := l.Current(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, Unknown, cur)
}

func TestLock_ResetAndRelock(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	l := NewLock(store, 2)
	ctx := context.Background()

	require.NoError(t, l.SetLocked(ctx, 1, Fitness))
	require.NoError(t, l.Reset(ctx, 1))
	ok, err := l.CheckAndConsume(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.SetLocked(ctx, 1, Medical))
	n, err := l.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLock_Malformed(t *testing.T) {
	store, mr := redisstore.NewTest(t)
	l := NewLock(store, 2)
	require.NoError(t, mr.Set(session.IntentLockKey(1), "two"))

	ok, err := l.CheckAndConsume(context.Background(), 1)
	assert.False(t, ok)
	assert.ErrorIs(t, err, session.ErrMalformed)
}

type scriptedLLM struct {
	out  string
	err  error
	seen []ai.Message
}

func (s *scriptedLLM) Chat(_ context.Context, msgs []ai.Message) (string, error) {
	s.seen = msgs
	return s.out, s.err
}

func TestClassifier(t *testing.T) {
	store, mr := redisstore.NewTest(t)
	llm := &scriptedLLM{out: "Fitness\n"}
	c := NewClassifier(llm, store, prompts.Default(), nil)

	in, err := c.Classify(context.Background(), 3, "how to run 10k")
	require.NoError(t, err)
	assert.Equal(t, Fitness, in)
	assert.Contains(t, llm.seen[len(llm.seen)-1].Content, "how to run 10k")

	v, err := mr.Get(session.IntentKey(3))
	require.NoError(t, err)
	assert.Equal(t, "fitness", v)

	llm.out = "astrology"
	in, err = c.Classify(context.Background(), 3, "horoscope")
	require.NoError(t, err)
	assert.Equal(t, Unknown, in)
}

func TestClassifier_Error(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	c := NewClassifier(&scriptedLLM{err: errors.New("timeout")}, store, prompts.Default(), nil)

	in, err := c.Classify(context.Background(), 3, "q")
	assert.Error(t, err)
	assert.Equal(t, Unknown, in)
}

func TestRephraser(t *testing.T) {
	store, mr := redisstore.NewTest(t)
	llm := &scriptedLLM{out: "  best protein sources for muscle gain  "}
	r := NewRephraser(llm, store, prompts.Default(), nil)

	out, err := r.Rephrase(context.Background(), 4, Diet, "protein?")
	require.NoError(t, err)
	assert.Equal(t, "best protein sources for muscle gain", out)
	assert.Contains(t, llm.seen[0].Content, "diet")

	v, err := mr.Get(session.RephrasedQueryKey(4))
	require.NoError(t, err)
	assert.Equal(t, out, v)
}
