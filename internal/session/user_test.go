package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/nutribot/internal/session"
	"github.com/suPer8Hu/nutribot/internal/store/redisstore"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:42", session.UserKey(42))
	assert.Equal(t, "user:42:msg_count", session.MsgCountKey(42))
	assert.Equal(t, "user:42:mygenetics:password", session.PasswordKey(42))
	assert.Equal(t, "task:abc:status", session.TaskStatusKey("abc"))
}

func TestUsers_Model(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	users := session.NewUsers(store)
	ctx := context.Background()

	_, ok, err := users.Model(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, users.SetModel(ctx, 7, session.ModelYandexGPT))
	m, ok, err := users.Model(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, session.ModelYandexGPT, m)

	require.NoError(t, store.Set(ctx, session.ModelKey(7), "llama", 0))
	_, ok, err = users.Model(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUsers_FirstContact(t *testing.T) {
	store, _ := redisstore.NewTest(t)
	users := session.NewUsers(store)
	ctx := context.Background()

	first, err := users.FirstContact(ctx, 9)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = users.FirstContact(ctx, 9)
	require.NoError(t, err)
	assert.False(t, first)
}

func TestParseModel(t *testing.T) {
	m, ok := session.ParseModel(" ChatGPT ")
	assert.True(t, ok)
	assert.Equal(t, session.ModelChatGPT, m)

	_, ok = session.ParseModel("gpt")
	assert.False(t, ok)
}
