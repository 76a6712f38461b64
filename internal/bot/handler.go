// Package bot routes chat commands, button presses and free text to the
// conversation components.
package bot

import (
	"context"
	"errors"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/auth"
	"github.com/suPer8Hu/nutribot/internal/history"
	"github.com/suPer8Hu/nutribot/internal/intent"
	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/prompts"
	"github.com/suPer8Hu/nutribot/internal/ratelimit"
	"github.com/suPer8Hu/nutribot/internal/session"
	"github.com/suPer8Hu/nutribot/internal/task"
	"github.com/suPer8Hu/nutribot/internal/transport"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req task.Request) (string, error)
}

type ReportStore interface {
	StoreGeneticReport(ctx context.Context, userID int64, codelab string, data map[string]any) error
}

type InteractionLog interface {
	LogInteraction(ctx context.Context, i *history.Interaction) error
}

type Deps struct {
	Sender       transport.Sender
	Limiter      *ratelimit.Limiter
	Users        *session.Users
	Auth         *auth.Flow
	Lock         *intent.Lock
	Tracker      *task.Tracker
	Dispatcher   Dispatcher
	Reports      ReportStore
	Interactions InteractionLog
	Prompts      *prompts.Set
	Log          *zap.Logger
}

// Handler implements transport.Handler.
type Handler struct {
	sender       transport.Sender
	limiter      *ratelimit.Limiter
	users        *session.Users
	auth         *auth.Flow
	lock         *intent.Lock
	tracker      *task.Tracker
	dispatcher   Dispatcher
	reports      ReportStore
	interactions InteractionLog
	p            *prompts.Set
	log          *zap.Logger
}

var _ transport.Handler = (*Handler)(nil)

const redactedAuthInput = "[auth input]"

func NewHandler(d Deps) *Handler {
	p := d.Prompts
	if p == nil {
		p = prompts.Default()
	}
	return &Handler{
		sender:       d.Sender,
		limiter:      d.Limiter,
		users:        d.Users,
		auth:         d.Auth,
		lock:         d.Lock,
		tracker:      d.Tracker,
		dispatcher:   d.Dispatcher,
		reports:      d.Reports,
		interactions: d.Interactions,
		p:            p,
		log:          logging.OrNop(d.Log),
	}
}

func (h *Handler) HandleMessage(ctx context.Context, m transport.Message) {
	log := h.log.With(zap.Int64("user_id", m.UserID), zap.Int64("chat_id", m.ChatID))
	var response string
	switch {
	case m.Command != "":
		response = h.handleCommand(ctx, log, m)
	case !m.IsText():
		response = h.p.Msg("send_text")
		h.send(ctx, log, m.ChatID, response, nil)
	default:
		var authInput bool
		response, authInput = h.handleText(ctx, log, m)
		if authInput {
			m.Text = redactedAuthInput
		}
	}
	h.logInteraction(ctx, log, m, response)
}

func (h *Handler) handleCommand(ctx context.Context, log *zap.Logger, m transport.Message) string {
	switch m.Command {
	case "start":
		first, err := h.users.FirstContact(ctx, m.UserID)
		if err != nil {
			log.Warn("first contact check", zap.Error(err))
		}
		_, hasModel, err := h.users.Model(ctx, m.UserID)
		if err != nil {
			log.Warn("read model", zap.Error(err))
		}
		var kb [][]transport.Button
		if first || !hasModel {
			kb = h.modelKeyboard()
		}
		return h.send(ctx, log, m.ChatID, h.p.Msg("welcome"), kb)
	case "model":
		return h.send(ctx, log, m.ChatID, h.p.Msg("choose_model"), h.modelKeyboard())
	case "agent":
		return h.send(ctx, log, m.ChatID, h.p.Msg("choose_agent"), h.agentKeyboard())
	case "auth":
		return h.authCommand(ctx, log, m.ChatID, m.UserID)
	default:
		return h.send(ctx, log, m.ChatID, h.p.Msg("help"), nil)
	}
}

// handleText runs the message pipeline: rate limit, auth input, model
// gate, in-flight gate, placeholder, dispatch. authInput is true when the
// text was consumed by the sign-in flow and must not be logged.
func (h *Handler) handleText(ctx context.Context, log *zap.Logger, m transport.Message) (response string, authInput bool) {
	if !h.limiter.Allow(ctx, m.UserID) {
		return h.send(ctx, log, m.ChatID, h.p.Msg("rate_limited"), nil), false
	}

	res, err := h.auth.HandleInput(ctx, m.UserID, m.Text)
	if err != nil {
		log.Error("auth input", zap.Error(err))
		return h.send(ctx, log, m.ChatID, h.p.Msg("task_failed"), nil), true
	}
	if res.Handled {
		return h.authReply(ctx, log, m, res), true
	}

	return h.ask(ctx, log, m), false
}

func (h *Handler) ask(ctx context.Context, log *zap.Logger, m transport.Message) string {
	model, ok, err := h.users.Model(ctx, m.UserID)
	if err != nil {
		log.Warn("read model", zap.Error(err))
	}
	if !ok {
		return h.send(ctx, log, m.ChatID, h.p.Msg("model_required"), h.modelKeyboard())
	}

	busy, err := h.tracker.InFlight(ctx, m.UserID)
	if err != nil {
		log.Warn("in-flight check", zap.Error(err))
	}
	if busy {
		return h.send(ctx, log, m.ChatID, h.p.Msg("in_flight"), nil)
	}

	waitingID, err := h.sender.Send(ctx, m.ChatID, h.p.Msg("waiting"), nil)
	if err != nil {
		log.Warn("send waiting message", zap.Error(err))
		waitingID = 0
	}

	taskID, err := h.dispatcher.Dispatch(ctx, task.Request{
		UserID:           m.UserID,
		ChatID:           m.ChatID,
		Query:            m.Text,
		Model:            string(model),
		WaitingMessageID: waitingID,
		InboundMessageID: m.MessageID,
	})
	if err != nil {
		log.Error("dispatch", zap.Error(err))
		if waitingID != 0 {
			if derr := h.sender.Delete(ctx, m.ChatID, waitingID); derr != nil {
				log.Warn("delete waiting message", zap.Error(derr))
			}
		}
		return h.send(ctx, log, m.ChatID, h.p.Msg("dispatch_failed"), nil)
	}
	return "task:" + taskID
}

func (h *Handler) authReply(ctx context.Context, log *zap.Logger, m transport.Message, res auth.Result) string {
	switch res.Event {
	case auth.EventLoginAccepted:
		return h.send(ctx, log, m.ChatID, h.p.Msg("auth_enter_password"), h.cancelKeyboard())
	case auth.EventAwaitingCodelab:
		h.forgetSecret(ctx, log, m)
		return h.send(ctx, log, m.ChatID, h.p.Msg("auth_enter_codelab"), h.codelabKeyboard())
	case auth.EventCredentialsRejected:
		h.forgetSecret(ctx, log, m)
		return h.send(ctx, log, m.ChatID, h.p.Msg("auth_rejected"), h.cancelKeyboard())
	case auth.EventLoginExpired:
		return h.send(ctx, log, m.ChatID, h.p.Msg("auth_login_expired"), h.cancelKeyboard())
	case auth.EventCompleted:
		h.syncReport(ctx, log, m.UserID, res.Codelab)
		return h.send(ctx, log, m.ChatID, h.p.Msg("auth_completed"), nil)
	default:
		return h.send(ctx, log, m.ChatID, h.p.Msg("auth_invalid_input", "expected", h.expected(res.Stage)), h.cancelKeyboard())
	}
}

func (h *Handler) expected(s auth.Stage) string {
	switch s {
	case auth.StageWaitingPassword:
		return h.p.Msg("auth_enter_password")
	case auth.StageWaitingCodelab:
		return h.p.Msg("auth_enter_codelab")
	default:
		return h.p.Msg("auth_enter_login")
	}
}

// forgetSecret removes the message that carried a password from the chat.
func (h *Handler) forgetSecret(ctx context.Context, log *zap.Logger, m transport.Message) {
	if err := h.sender.Delete(ctx, m.ChatID, m.MessageID); err != nil {
		log.Warn("delete password message", zap.Error(err))
	}
}

// syncReport fetches the lab report for codelab and stores it for prompt
// augmentation. Failures only cost the personalization.
func (h *Handler) syncReport(ctx context.Context, log *zap.Logger, userID int64, codelab string) {
	if codelab == "" || h.reports == nil {
		return
	}
	data, err := h.auth.FetchCodelab(ctx, userID, codelab)
	if err != nil {
		log.Warn("fetch codelab data", zap.Error(err))
		return
	}
	if data == nil {
		log.Info("no data for codelab", zap.String("codelab", codelab))
		return
	}
	if err := h.reports.StoreGeneticReport(ctx, userID, codelab, data); err != nil {
		log.Warn("store genetic report", zap.Error(err))
	}
}

func (h *Handler) authCommand(ctx context.Context, log *zap.Logger, chatID, userID int64) string {
	ok, err := h.auth.IsAuthenticated(ctx, userID)
	if err != nil {
		log.Warn("read auth status", zap.Error(err))
	}
	if !ok {
		return h.startAuth(ctx, log, chatID, userID)
	}
	login, _, err := h.auth.Credentials(ctx, userID)
	if err != nil {
		log.Warn("read credentials", zap.Error(err))
	}
	codelab, err := h.auth.Codelab(ctx, userID)
	if err != nil {
		log.Warn("read codelab", zap.Error(err))
	}
	if codelab == "" {
		codelab = "-"
	}
	text := h.p.Msg("auth_status", "login", html.EscapeString(login), "codelab", html.EscapeString(codelab))
	return h.send(ctx, log, chatID, strings.TrimSpace(text), h.accountKeyboard())
}

func (h *Handler) startAuth(ctx context.Context, log *zap.Logger, chatID, userID int64) string {
	err := h.auth.Start(ctx, userID)
	switch {
	case errors.Is(err, auth.ErrAlreadyAuthenticated):
		return h.send(ctx, log, chatID, h.p.Msg("auth_already"), h.accountKeyboard())
	case err != nil:
		log.Error("start auth", zap.Error(err))
		return h.send(ctx, log, chatID, h.p.Msg("task_failed"), nil)
	}
	return h.send(ctx, log, chatID, h.p.Msg("auth_enter_login"), h.cancelKeyboard())
}

func (h *Handler) HandleCallback(ctx context.Context, c transport.Callback) {
	log := h.log.With(zap.Int64("user_id", c.UserID), zap.String("action", c.Action.String()))
	response := h.handleAction(ctx, log, c)
	h.logInteraction(ctx, log, transport.Message{UserID: c.UserID, Username: c.Username, Text: "callback:" + c.Data}, response)
}

func (h *Handler) handleAction(ctx context.Context, log *zap.Logger, c transport.Callback) string {
	switch c.Action {
	case transport.ModelChatGPT:
		return h.selectModel(ctx, log, c, session.ModelChatGPT)
	case transport.ModelYandexGPT:
		return h.selectModel(ctx, log, c, session.ModelYandexGPT)
	case transport.AgentDiet:
		return h.selectAgent(ctx, log, c, intent.Diet)
	case transport.AgentFitness:
		return h.selectAgent(ctx, log, c, intent.Fitness)
	case transport.AgentMedical:
		return h.selectAgent(ctx, log, c, intent.Medical)
	case transport.AgentReset:
		if err := h.lock.Reset(ctx, c.UserID); err != nil {
			log.Warn("reset intent lock", zap.Error(err))
		}
		return h.send(ctx, log, c.ChatID, h.p.Msg("agent_reset"), nil)
	case transport.AuthPrompt, transport.AuthEnterCredentials:
		return h.startAuth(ctx, log, c.ChatID, c.UserID)
	case transport.AuthSkipCodelab:
		res, err := h.auth.SkipCodelab(ctx, c.UserID)
		if err != nil {
			log.Error("skip codelab", zap.Error(err))
			return h.send(ctx, log, c.ChatID, h.p.Msg("task_failed"), nil)
		}
		if !res.Handled {
			return ""
		}
		return h.send(ctx, log, c.ChatID, h.p.Msg("auth_completed"), nil)
	case transport.AuthRenewToken:
		ok, err := h.auth.RenewToken(ctx, c.UserID)
		switch {
		case errors.Is(err, auth.ErrNotAuthenticated):
			return h.send(ctx, log, c.ChatID, h.p.Msg("auth_not_authenticated"), nil)
		case err != nil:
			log.Error("renew token", zap.Error(err))
			return h.send(ctx, log, c.ChatID, h.p.Msg("auth_renew_failed"), nil)
		case !ok:
			return h.send(ctx, log, c.ChatID, h.p.Msg("auth_renew_failed"), nil)
		}
		return h.send(ctx, log, c.ChatID, h.p.Msg("auth_renewed"), nil)
	case transport.AuthLogout:
		err := h.auth.Logout(ctx, c.UserID)
		switch {
		case errors.Is(err, auth.ErrNotAuthenticated):
			return h.send(ctx, log, c.ChatID, h.p.Msg("auth_not_authenticated"), nil)
		case err != nil:
			log.Error("logout", zap.Error(err))
			return h.send(ctx, log, c.ChatID, h.p.Msg("task_failed"), nil)
		}
		return h.send(ctx, log, c.ChatID, h.p.Msg("auth_logged_out"), nil)
	case transport.AuthCancel:
		if err := h.auth.Cancel(ctx, c.UserID); err != nil {
			log.Warn("cancel auth", zap.Error(err))
		}
		return h.send(ctx, log, c.ChatID, h.p.Msg("auth_canceled"), nil)
	case transport.Unrecognized:
		log.Warn("unrecognized callback", zap.String("data", c.Data))
		return h.send(ctx, log, c.ChatID, h.p.Msg("unknown_action"), nil)
	default:
		log.Error("callback action without a route", zap.String("data", c.Data))
		return h.send(ctx, log, c.ChatID, h.p.Msg("unknown_action"), nil)
	}
}

func (h *Handler) selectModel(ctx context.Context, log *zap.Logger, c transport.Callback, m session.Model) string {
	if err := h.users.SetModel(ctx, c.UserID, m); err != nil {
		log.Error("set model", zap.Error(err))
		return h.send(ctx, log, c.ChatID, h.p.Msg("task_failed"), nil)
	}
	text := h.p.Msg("model_selected", "model", string(m))
	if err := h.sender.Edit(ctx, c.ChatID, c.MessageID, text, nil); err != nil {
		log.Warn("edit model keyboard", zap.Error(err))
		return h.send(ctx, log, c.ChatID, text, nil)
	}
	return text
}

func (h *Handler) selectAgent(ctx context.Context, log *zap.Logger, c transport.Callback, in intent.Intent) string {
	if err := h.lock.SetLocked(ctx, c.UserID, in); err != nil {
		log.Error("lock intent", zap.Error(err))
		return h.send(ctx, log, c.ChatID, h.p.Msg("task_failed"), nil)
	}
	return h.send(ctx, log, c.ChatID, h.p.Msg("agent_selected", "intent", string(in)), nil)
}

// send delivers text and returns it for the interaction log.
func (h *Handler) send(ctx context.Context, log *zap.Logger, chatID int64, text string, kb [][]transport.Button) string {
	if _, err := h.sender.Send(ctx, chatID, text, kb); err != nil {
		log.Warn("send message", zap.Error(err))
	}
	return text
}

func (h *Handler) logInteraction(ctx context.Context, log *zap.Logger, m transport.Message, response string) {
	if h.interactions == nil {
		return
	}
	err := h.interactions.LogInteraction(ctx, &history.Interaction{
		UserID:   m.UserID,
		Username: m.Username,
		Request:  m.Text,
		Response: response,
	})
	if err != nil {
		log.Warn("log interaction", zap.Error(err))
	}
}
