package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/common"
	"github.com/suPer8Hu/nutribot/internal/intent"
	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/metrics"
)

type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

type Classifier interface {
	Classify(ctx context.Context, userID int64, query string) (intent.Intent, error)
}

type Rephraser interface {
	Rephrase(ctx context.Context, userID int64, in intent.Intent, query string) (string, error)
}

// AuthState is the part of the sign-in flow dispatch needs.
type AuthState interface {
	IsAuthenticated(ctx context.Context, userID int64) (bool, error)
	ShouldShowPrompt(ctx context.Context, userID int64) (bool, error)
}

type Request struct {
	UserID           int64
	ChatID           int64
	Query            string
	Model            string
	WaitingMessageID int
	InboundMessageID int
}

type Dispatcher struct {
	lock       *intent.Lock
	classifier Classifier
	rephraser  Rephraser
	auth       AuthState
	tracker    *Tracker
	publisher  Publisher
	log        *zap.Logger

	newID func() (string, error)
	now   func() time.Time
}

type DispatcherDeps struct {
	Lock       *intent.Lock
	Classifier Classifier
	Rephraser  Rephraser
	Auth       AuthState
	Tracker    *Tracker
	Publisher  Publisher
	Log        *zap.Logger
}

func NewDispatcher(d DispatcherDeps) *Dispatcher {
	return &Dispatcher{
		lock:       d.Lock,
		classifier: d.Classifier,
		rephraser:  d.Rephraser,
		auth:       d.Auth,
		tracker:    d.Tracker,
		publisher:  d.Publisher,
		log:        logging.OrNop(d.Log),
		newID:      common.NewULID,
		now:        time.Now,
	}
}

// Dispatch enqueues the query and returns the task id without waiting for
// the reply. Classifier, rephraser and auth lookups never abort it; only
// id generation, status and queue failures do.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return "", errors.New("task: empty query")
	}
	log := d.log.With(zap.Int64("user_id", req.UserID))

	in := d.resolveIntent(ctx, log, req)

	rephrased := req.Query
	if d.rephraser != nil {
		out, err := d.rephraser.Rephrase(ctx, req.UserID, in, req.Query)
		switch {
		case err != nil:
			log.Warn("rephrase failed, using original query", zap.Error(err))
			metrics.IncCollaboratorFailure("rephraser")
		case strings.TrimSpace(out) != "":
			rephrased = out
		}
	}

	authenticated, err := d.auth.IsAuthenticated(ctx, req.UserID)
	if err != nil {
		log.Warn("read auth status", zap.Error(err))
		metrics.IncCollaboratorFailure("auth_state")
		authenticated = false
	}
	showPrompt := false
	if !authenticated {
		showPrompt, err = d.auth.ShouldShowPrompt(ctx, req.UserID)
		if err != nil {
			log.Warn("auth prompt check", zap.Error(err))
			showPrompt = false
		}
	}

	taskID, err := d.newID()
	if err != nil {
		metrics.IncDispatched("error")
		return "", fmt.Errorf("task id: %w", err)
	}

	rec := Record{
		Type:             TypeLLM,
		TaskID:           taskID,
		UserID:           req.UserID,
		ChatID:           req.ChatID,
		UserQuery:        req.Query,
		RephrasedQuery:   rephrased,
		Model:            req.Model,
		WaitingMessageID: req.WaitingMessageID,
		Intent:           string(in),
		IsAuthenticated:  authenticated,
		ShowAuthPrompt:   showPrompt,
		Timestamp:        d.now().UTC(),
		InboundMessageID: req.InboundMessageID,
	}

	if err := d.tracker.Begin(ctx, taskID, req.UserID); err != nil {
		metrics.IncDispatched("error")
		return "", fmt.Errorf("mark processing: %w", err)
	}
	if err := d.publisher.Publish(ctx, rec); err != nil {
		if ferr := d.tracker.Finish(ctx, taskID, req.UserID, StatusFailed); ferr != nil {
			log.Warn("mark failed after publish error", zap.String("task_id", taskID), zap.Error(ferr))
		}
		metrics.IncDispatched("error")
		return "", fmt.Errorf("publish task: %w", err)
	}

	metrics.IncDispatched("ok")
	log.Info("task dispatched",
		zap.String("task_id", taskID),
		zap.String("model", req.Model),
		zap.String("intent", string(in)),
		zap.Bool("authenticated", authenticated),
		zap.Bool("auth_prompt", showPrompt),
	)
	return taskID, nil
}

func (d *Dispatcher) resolveIntent(ctx context.Context, log *zap.Logger, req Request) intent.Intent {
	locked, err := d.lock.CheckAndConsume(ctx, req.UserID)
	if err != nil {
		log.Warn("intent lock check", zap.Error(err))
		locked = false
	}
	if locked {
		in, err := d.lock.Current(ctx, req.UserID)
		if err != nil {
			log.Warn("read locked intent", zap.Error(err))
			in = intent.Unknown
		}
		metrics.IncIntent(string(in), "locked")
		return in
	}

	if d.classifier == nil {
		metrics.IncIntent(string(intent.Unknown), "default")
		return intent.Unknown
	}
	in, err := d.classifier.Classify(ctx, req.UserID, req.Query)
	if err != nil {
		log.Warn("intent classification failed", zap.Error(err))
		metrics.IncCollaboratorFailure("classifier")
		metrics.IncIntent(string(intent.Unknown), "fallback")
		return intent.Unknown
	}
	in = intent.Parse(string(in))
	metrics.IncIntent(string(in), "classifier")
	return in
}
