package intent

import (
	"context"
	"fmt"
	"strconv"

	"github.com/suPer8Hu/nutribot/internal/session"
)

const DefaultLockRequests = 2

// Lock pins a user's intent for a fixed number of subsequent messages.
type Lock struct {
	store    session.Store
	requests int
}

func NewLock(store session.Store, requests int) *Lock {
	if requests <= 0 {
		requests = DefaultLockRequests
	}
	return &Lock{store: store, requests: requests}
}

// SetLocked stores the intent and restarts the counter.
func (l *Lock) SetLocked(ctx context.Context, userID int64, in Intent) error {
	if err := l.store.Set(ctx, session.IntentKey(userID), string(in), 0); err != nil {
		return err
	}
	return l.store.Set(ctx, session.IntentLockKey(userID), strconv.Itoa(l.requests), 0)
}

// CheckAndConsume returns true and spends one request when the lock is held.
// A missing, zero or malformed counter means unlocked.
func (l *Lock) CheckAndConsume(ctx context.Context, userID int64) (bool, error) {
	key := session.IntentLockKey(userID)
	raw, found, err := l.store.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return false, fmt.Errorf("intent lock %q: %w", raw, session.ErrMalformed)
	}
	if n <= 0 {
		return false, nil
	}
	if err := l.store.Set(ctx, key, strconv.Itoa(n-1), 0); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Lock) Reset(ctx context.Context, userID int64) error {
	return l.store.Set(ctx, session.IntentLockKey(userID), "0", 0)
}

// Remaining reports how many locked requests are left.
func (l *Lock) Remaining(ctx context.Context, userID int64) (int, error) {
	raw, found, err := l.store.Get(ctx, session.IntentLockKey(userID))
	if err != nil || !found {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// Current reads the stored intent, Unknown when absent.
func (l *Lock) Current(ctx context.Context, userID int64) (Intent, error) {
	raw, found, err := l.store.Get(ctx, session.IntentKey(userID))
	if err != nil || !found {
		return Unknown, err
	}
	return Parse(raw), nil
}
