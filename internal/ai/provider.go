package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Provider is one LLM backend. Every failure is a backend error to callers.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

var ErrEmptyResponse = errors.New("ai: empty response")

// Complete sends a single-turn prompt with an optional system prompt.
func Complete(ctx context.Context, p Provider, system, prompt string) (string, error) {
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})
	out, err := p.Chat(ctx, msgs)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func statusError(name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", name, msg)
}
