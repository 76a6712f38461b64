package task

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/suPer8Hu/nutribot/internal/session"
)

const (
	DefaultProcessingTTL = 60 * time.Second
	DefaultResultTTL     = 24 * time.Hour
)

var ErrInvalidTransition = errors.New("task: invalid status transition")

// Tracker keeps task status in the session store under both the task id
// and the user id. The user key backs the "response in flight" gate; the
// processing TTL frees a user whose worker died.
type Tracker struct {
	store         session.Store
	processingTTL time.Duration
	resultTTL     time.Duration
}

func NewTracker(store session.Store, processingTTL, resultTTL time.Duration) *Tracker {
	if processingTTL <= 0 {
		processingTTL = DefaultProcessingTTL
	}
	if resultTTL <= 0 {
		resultTTL = DefaultResultTTL
	}
	return &Tracker{store: store, processingTTL: processingTTL, resultTTL: resultTTL}
}

func userStatusKey(userID int64) string {
	return session.TaskStatusKey(strconv.FormatInt(userID, 10))
}

func (t *Tracker) Begin(ctx context.Context, taskID string, userID int64) error {
	if err := t.store.Set(ctx, session.TaskStatusKey(taskID), string(StatusProcessing), t.processingTTL); err != nil {
		return err
	}
	if err := t.store.Set(ctx, userStatusKey(userID), string(StatusProcessing), t.processingTTL); err != nil {
		return err
	}
	return t.store.Set(ctx, session.TaskOwnerKey(userID), taskID, t.processingTTL)
}

// Finish records a terminal status. A task that already finished is left
// alone and ErrInvalidTransition is returned; a task whose processing
// status expired may still finish. The user's gate is only touched when
// no newer task has claimed it.
func (t *Tracker) Finish(ctx context.Context, taskID string, userID int64, s Status) error {
	if !s.Terminal() {
		return fmt.Errorf("%w: to %q", ErrInvalidTransition, s)
	}
	cur, found, err := t.Status(ctx, taskID)
	if err != nil {
		return err
	}
	if found && cur.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, s)
	}
	if err := t.store.Set(ctx, session.TaskStatusKey(taskID), string(s), t.resultTTL); err != nil {
		return err
	}
	owner, found, err := t.store.Get(ctx, session.TaskOwnerKey(userID))
	if err != nil {
		return err
	}
	if found && owner != taskID {
		return nil
	}
	return t.store.Set(ctx, userStatusKey(userID), string(s), t.resultTTL)
}

func (t *Tracker) Status(ctx context.Context, taskID string) (Status, bool, error) {
	v, found, err := t.store.Get(ctx, session.TaskStatusKey(taskID))
	if err != nil || !found {
		return "", false, err
	}
	return Status(v), true, nil
}

// InFlight is true only while the user's latest task is processing.
// Missing or terminal statuses leave the user open for new work.
func (t *Tracker) InFlight(ctx context.Context, userID int64) (bool, error) {
	v, _, err := t.store.Get(ctx, userStatusKey(userID))
	if err != nil {
		return false, err
	}
	return Status(v) == StatusProcessing, nil
}
