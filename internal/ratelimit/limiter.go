// Package ratelimit caps how many messages one user may send per window.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/metrics"
	"github.com/suPer8Hu/nutribot/internal/session"
)

const (
	DefaultMax    = 5
	DefaultWindow = 60 * time.Second
)

type Limiter struct {
	store  session.Store
	max    int
	window time.Duration
	log    *zap.Logger
}

func New(store session.Store, max int, window time.Duration, log *zap.Logger) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, max: max, window: window, log: logging.OrNop(log)}
}

// Allow admits at most max messages per window. Store failures admit the
// message; a counter that is not an integer rejects it.
func (l *Limiter) Allow(ctx context.Context, userID int64) bool {
	key := session.MsgCountKey(userID)

	raw, found, err := l.store.Get(ctx, key)
	if err != nil {
		return l.failOpen(userID, err)
	}
	if !found {
		if err := l.store.Set(ctx, key, "1", l.window); err != nil {
			return l.failOpen(userID, err)
		}
		metrics.IncRateLimit("allowed")
		return true
	}

	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		l.log.Warn("rate counter malformed", zap.Int64("user_id", userID), zap.String("value", raw))
		metrics.IncRateLimit("malformed")
		return false
	}
	if count >= l.max {
		metrics.IncRateLimit("rejected")
		return false
	}

	// TTL restarts on every increment.
	if err := l.store.Set(ctx, key, strconv.Itoa(count+1), l.window); err != nil {
		return l.failOpen(userID, err)
	}
	metrics.IncRateLimit("allowed")
	return true
}

func (l *Limiter) failOpen(userID int64, err error) bool {
	l.log.Warn("rate limiter store failed, allowing", zap.Int64("user_id", userID), zap.Error(err))
	metrics.IncRateLimit("fail_open")
	return true
}
