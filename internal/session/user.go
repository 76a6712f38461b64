package session

import (
	"context"
	"strings"
)

// Model identifies an LLM backend the user picked.
type Model string

const (
	ModelChatGPT   Model = "chatgpt"
	ModelYandexGPT Model = "yandexgpt"
)

func ParseModel(s string) (Model, bool) {
	switch Model(strings.ToLower(strings.TrimSpace(s))) {
	case ModelChatGPT:
		return ModelChatGPT, true
	case ModelYandexGPT:
		return ModelYandexGPT, true
	}
	return "", false
}

// Users wraps a Store with typed accessors for profile-level keys.
type Users struct {
	store Store
}

func NewUsers(store Store) *Users {
	return &Users{store: store}
}

// Model returns the selected model; ok is false when none has been chosen.
func (u *Users) Model(ctx context.Context, userID int64) (Model, bool, error) {
	v, found, err := u.store.Get(ctx, ModelKey(userID))
	if err != nil || !found {
		return "", false, err
	}
	m, ok := ParseModel(v)
	if !ok {
		return "", false, nil
	}
	return m, true, nil
}

func (u *Users) SetModel(ctx context.Context, userID int64, m Model) error {
	return u.store.Set(ctx, ModelKey(userID), string(m), 0)
}

// FirstContact reports whether the user has never been greeted and marks
// the user as seen.
func (u *Users) FirstContact(ctx context.Context, userID int64) (bool, error) {
	_, found, err := u.store.Get(ctx, UserKey(userID))
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if err := u.store.Set(ctx, UserKey(userID), "False", 0); err != nil {
		return false, err
	}
	return true, nil
}
