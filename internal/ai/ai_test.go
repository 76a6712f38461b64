package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIChatReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"eat greens"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1", "sk-test", "gpt-4o", time.Second)
	out, err := Complete(context.Background(), p, "be a dietitian", "what to eat?")
	require.NoError(t, err)
	assert.Equal(t, "eat greens", out)
}

func TestOpenAIProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "sk-test", "gpt-4o", time.Second)
	_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestYandexProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completion", r.URL.Path)
		assert.Equal(t, "Api-Key yc-key", r.Header.Get("Authorization"))
		assert.Equal(t, "folder1", r.Header.Get("x-folder-id"))
		assert.NotEmpty(t, r.Header.Get("x-client-request-id"))

		var req yandexReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt://folder1/yandexgpt-lite/latest", req.ModelURI)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Text)

		_, _ = w.Write([]byte(`{"result":{"alternatives":[{"message":{"role":"assistant","text":"privet"},"status":"ALTERNATIVE_STATUS_FINAL"}]}}`))
	}))
	defer srv.Close()

	p := NewYandexProvider(srv.URL, "yc-key", "folder1", "", time.Second)
	out, err := Complete(context.Background(), p, "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "privet", out)
}

func TestYandexProvider_RequiresFolder(t *testing.T) {
	p := NewYandexProvider("", "key", "", "", time.Second)
	_, err := p.Chat(context.Background(), nil)
	assert.Error(t, err)
}

type staticProvider string

func (s staticProvider) Chat(context.Context, []Message) (string, error) { return string(s), nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.RegisterProvider("ChatGPT", staticProvider("a"))

	p, err := r.Get(context.Background(), " chatgpt ")
	require.NoError(t, err)
	out, _ := p.Chat(context.Background(), nil)
	assert.Equal(t, "a", out)

	_, err = r.Get(context.Background(), "llama")
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestComplete_EmptyIsError(t *testing.T) {
	_, err := Complete(context.Background(), staticProvider("  "), "", "q")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
