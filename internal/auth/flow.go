// Package auth runs the multi-step MyGenetics sign-in conversation:
// login, then password, then an optional lab code.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/metrics"
	"github.com/suPer8Hu/nutribot/internal/session"
)

type Stage string

const (
	StageNone            Stage = "none"
	StageWaitingLogin    Stage = "waiting_login"
	StageWaitingPassword Stage = "waiting_password"
	StageWaitingCodelab  Stage = "waiting_codelab"
	StageCompleted       Stage = "completed"
)

const (
	processStarted  = "started"
	processCanceled = "canceled"

	statusAuthenticated    = "authenticated"
	statusNotAuthenticated = "not_authenticated"
)

const (
	DefaultTTL            = 300 * time.Second
	DefaultPromptCooldown = time.Hour
)

// Event says what HandleInput did with the text so the caller can answer.
type Event string

const (
	EventLoginAccepted       Event = "login_accepted"
	EventAwaitingCodelab     Event = "awaiting_codelab"
	EventCredentialsRejected Event = "credentials_rejected"
	EventLoginExpired        Event = "login_expired"
	EventInputInvalid        Event = "input_invalid"
	EventCompleted           Event = "completed"
)

type Result struct {
	// Handled is false when no auth process is active and the message
	// belongs to the normal pipeline.
	Handled bool
	Stage   Stage
	Event   Event
	// Codelab is set when the flow completed with a lab code.
	Codelab string
}

var (
	ErrAlreadyAuthenticated = errors.New("auth: already authenticated")
	ErrNotAuthenticated     = errors.New("auth: not authenticated")
)

// Provider is the external account the user signs in to. Sessions are kept
// per bot user.
type Provider interface {
	Authenticate(ctx context.Context, userID int64, login, password string) (bool, error)
	RenewToken(ctx context.Context, userID int64) (bool, error)
	CodelabData(ctx context.Context, userID int64, code string) (map[string]any, error)
	Logout(ctx context.Context, userID int64) (bool, error)
}

type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

type Options struct {
	TTL            time.Duration
	PromptCooldown time.Duration
}

type Flow struct {
	store    session.Store
	provider Provider
	sealer   Sealer
	ttl      time.Duration
	cooldown time.Duration
	log      *zap.Logger
}

func NewFlow(store session.Store, provider Provider, sealer Sealer, opts Options, log *zap.Logger) *Flow {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.PromptCooldown <= 0 {
		opts.PromptCooldown = DefaultPromptCooldown
	}
	return &Flow{
		store:    store,
		provider: provider,
		sealer:   sealer,
		ttl:      opts.TTL,
		cooldown: opts.PromptCooldown,
		log:      logging.OrNop(log),
	}
}

func (f *Flow) IsAuthenticated(ctx context.Context, userID int64) (bool, error) {
	v, _, err := f.store.Get(ctx, session.AuthStatusKey(userID))
	return v == statusAuthenticated, err
}

func (f *Flow) Active(ctx context.Context, userID int64) (bool, error) {
	v, _, err := f.store.Get(ctx, session.AuthProcessKey(userID))
	return v == processStarted, err
}

// Stage is StageNone whenever no process is active, whatever the stage key holds.
func (f *Flow) Stage(ctx context.Context, userID int64) (Stage, error) {
	active, err := f.Active(ctx, userID)
	if err != nil || !active {
		return StageNone, err
	}
	v, found, err := f.store.Get(ctx, session.AuthStageKey(userID))
	if err != nil {
		return StageNone, err
	}
	if !found {
		return StageWaitingLogin, nil
	}
	return Stage(v), nil
}

func (f *Flow) Start(ctx context.Context, userID int64) error {
	ok, err := f.IsAuthenticated(ctx, userID)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyAuthenticated
	}
	if err := f.store.Set(ctx, session.AuthProcessKey(userID), processStarted, f.ttl); err != nil {
		return err
	}
	if err := f.setStage(ctx, userID, StageWaitingLogin); err != nil {
		return err
	}
	f.event(userID, "started")
	return nil
}

// HandleInput feeds one text message into an active flow.
func (f *Flow) HandleInput(ctx context.Context, userID int64, text string) (Result, error) {
	stage, err := f.Stage(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if stage == StageNone || stage == StageCompleted {
		return Result{Handled: false, Stage: StageNone}, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Handled: true, Stage: stage, Event: EventInputInvalid}, nil
	}

	switch stage {
	case StageWaitingLogin:
		return f.acceptLogin(ctx, userID, text)
	case StageWaitingPassword:
		return f.acceptPassword(ctx, userID, text)
	case StageWaitingCodelab:
		return f.complete(ctx, userID, text)
	}

	// unknown stage value, restart the attempt
	f.log.Warn("unknown auth stage, restarting", zap.Int64("user_id", userID), zap.String("stage", string(stage)))
	if err := f.setStage(ctx, userID, StageWaitingLogin); err != nil {
		return Result{}, err
	}
	return Result{Handled: true, Stage: StageWaitingLogin, Event: EventInputInvalid}, nil
}

func (f *Flow) acceptLogin(ctx context.Context, userID int64, login string) (Result, error) {
	if err := f.store.Set(ctx, session.TempLoginKey(userID), login, f.ttl); err != nil {
		return Result{}, err
	}
	if err := f.setStage(ctx, userID, StageWaitingPassword); err != nil {
		return Result{}, err
	}
	return Result{Handled: true, Stage: StageWaitingPassword, Event: EventLoginAccepted}, nil
}

func (f *Flow) acceptPassword(ctx context.Context, userID int64, password string) (Result, error) {
	login, found, err := f.store.Get(ctx, session.TempLoginKey(userID))
	if err != nil {
		return Result{}, err
	}
	if !found || login == "" {
		if err := f.setStage(ctx, userID, StageWaitingLogin); err != nil {
			return Result{}, err
		}
		return Result{Handled: true, Stage: StageWaitingLogin, Event: EventLoginExpired}, nil
	}

	ok, err := f.provider.Authenticate(ctx, userID, login, password)
	if err != nil {
		f.log.Warn("provider authenticate failed", zap.Int64("user_id", userID), zap.Error(err))
		ok = false
	}
	if !ok {
		if err := f.setStage(ctx, userID, StageWaitingLogin); err != nil {
			return Result{}, err
		}
		f.event(userID, "rejected")
		return Result{Handled: true, Stage: StageWaitingLogin, Event: EventCredentialsRejected}, nil
	}

	if err := f.saveCredentials(ctx, userID, login, password); err != nil {
		return Result{}, err
	}
	if err := f.store.Set(ctx, session.AuthStatusKey(userID), statusNotAuthenticated, 0); err != nil {
		return Result{}, err
	}
	if err := f.setStage(ctx, userID, StageWaitingCodelab); err != nil {
		return Result{}, err
	}
	return Result{Handled: true, Stage: StageWaitingCodelab, Event: EventAwaitingCodelab}, nil
}

// SkipCodelab finishes the flow without a lab code. Outside the codelab
// stage it does nothing.
func (f *Flow) SkipCodelab(ctx context.Context, userID int64) (Result, error) {
	stage, err := f.Stage(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if stage != StageWaitingCodelab {
		return Result{Handled: false, Stage: stage}, nil
	}
	return f.complete(ctx, userID, "")
}

func (f *Flow) complete(ctx context.Context, userID int64, codelab string) (Result, error) {
	if codelab != "" {
		if err := f.store.Set(ctx, session.CodelabKey(userID), codelab, 0); err != nil {
			return Result{}, err
		}
	}
	if err := f.store.Set(ctx, session.AuthStatusKey(userID), statusAuthenticated, 0); err != nil {
		return Result{}, err
	}
	if err := f.setStage(ctx, userID, StageCompleted); err != nil {
		return Result{}, err
	}
	if err := f.store.Set(ctx, session.AuthProcessKey(userID), processCanceled, 0); err != nil {
		return Result{}, err
	}
	f.event(userID, "completed")
	return Result{Handled: true, Stage: StageCompleted, Event: EventCompleted, Codelab: codelab}, nil
}

// Cancel stops an active flow and leaves the authenticated flag alone.
func (f *Flow) Cancel(ctx context.Context, userID int64) error {
	active, err := f.Active(ctx, userID)
	if err != nil || !active {
		return err
	}
	f.event(userID, "canceled")
	return f.store.Set(ctx, session.AuthProcessKey(userID), processCanceled, 0)
}

// Logout signs out at the provider on a best-effort basis and always
// clears local credentials.
func (f *Flow) Logout(ctx context.Context, userID int64) error {
	ok, err := f.IsAuthenticated(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthenticated
	}
	if _, err := f.provider.Logout(ctx, userID); err != nil {
		f.log.Warn("provider logout failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if err := f.store.Set(ctx, session.AuthStatusKey(userID), statusNotAuthenticated, 0); err != nil {
		return err
	}
	if err := f.store.Set(ctx, session.LoginKey(userID), "", 0); err != nil {
		return err
	}
	if err := f.store.Set(ctx, session.PasswordKey(userID), "", 0); err != nil {
		return err
	}
	f.event(userID, "logout")
	return nil
}

// RenewToken refreshes the provider session, falling back to a fresh login
// with the stored credentials. It returns false after marking the user
// unauthenticated when both fail.
func (f *Flow) RenewToken(ctx context.Context, userID int64) (bool, error) {
	ok, err := f.IsAuthenticated(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotAuthenticated
	}

	renewed, err := f.provider.RenewToken(ctx, userID)
	if err != nil {
		f.log.Warn("provider renew failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if renewed {
		f.event(userID, "renewed")
		return true, nil
	}

	login, password, err := f.Credentials(ctx, userID)
	if err == nil && login != "" {
		reauthed, aerr := f.provider.Authenticate(ctx, userID, login, password)
		if aerr != nil {
			f.log.Warn("provider re-authenticate failed", zap.Int64("user_id", userID), zap.Error(aerr))
		}
		if reauthed {
			f.event(userID, "reauthenticated")
			return true, nil
		}
	}

	if err := f.store.Set(ctx, session.AuthStatusKey(userID), statusNotAuthenticated, 0); err != nil {
		return false, err
	}
	f.event(userID, "renew_failed")
	return false, nil
}

// ShouldShowPrompt allows one unsolicited sign-in nudge per cooldown for
// users who are neither signed in nor mid-flow. A true result starts the cooldown.
func (f *Flow) ShouldShowPrompt(ctx context.Context, userID int64) (bool, error) {
	ok, err := f.IsAuthenticated(ctx, userID)
	if err != nil || ok {
		return false, err
	}
	active, err := f.Active(ctx, userID)
	if err != nil || active {
		return false, err
	}
	_, shown, err := f.store.Get(ctx, session.AuthPromptShownKey(userID))
	if err != nil || shown {
		return false, err
	}
	if err := f.store.Set(ctx, session.AuthPromptShownKey(userID), "1", f.cooldown); err != nil {
		return false, err
	}
	return true, nil
}

// Credentials returns the stored provider login and password in clear text.
func (f *Flow) Credentials(ctx context.Context, userID int64) (string, string, error) {
	sealedLogin, _, err := f.store.Get(ctx, session.LoginKey(userID))
	if err != nil {
		return "", "", err
	}
	sealedPassword, _, err := f.store.Get(ctx, session.PasswordKey(userID))
	if err != nil {
		return "", "", err
	}
	login, err := f.sealer.Open(sealedLogin)
	if err != nil {
		return "", "", err
	}
	password, err := f.sealer.Open(sealedPassword)
	if err != nil {
		return "", "", err
	}
	return login, password, nil
}

func (f *Flow) Codelab(ctx context.Context, userID int64) (string, error) {
	v, _, err := f.store.Get(ctx, session.CodelabKey(userID))
	return v, err
}

// FetchCodelab pulls the report for code from the provider.
func (f *Flow) FetchCodelab(ctx context.Context, userID int64, code string) (map[string]any, error) {
	return f.provider.CodelabData(ctx, userID, code)
}

func (f *Flow) saveCredentials(ctx context.Context, userID int64, login, password string) error {
	sl, err := f.sealer.Seal(login)
	if err != nil {
		return err
	}
	sp, err := f.sealer.Seal(password)
	if err != nil {
		return err
	}
	if err := f.store.Set(ctx, session.LoginKey(userID), sl, 0); err != nil {
		return err
	}
	return f.store.Set(ctx, session.PasswordKey(userID), sp, 0)
}

func (f *Flow) setStage(ctx context.Context, userID int64, s Stage) error {
	return f.store.Set(ctx, session.AuthStageKey(userID), string(s), f.ttl)
}

func (f *Flow) event(userID int64, name string) {
	metrics.IncAuthEvent(name)
	f.log.Info("auth event", zap.Int64("user_id", userID), zap.String("event", name))
}
