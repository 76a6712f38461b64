package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/nutribot/internal/ai"
	"github.com/suPer8Hu/nutribot/internal/history"
	"github.com/suPer8Hu/nutribot/internal/knowledge"
	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/markup"
	"github.com/suPer8Hu/nutribot/internal/metrics"
	"github.com/suPer8Hu/nutribot/internal/prompts"
	"github.com/suPer8Hu/nutribot/internal/session"
	"github.com/suPer8Hu/nutribot/internal/transport"
)

const (
	faqLimit     = 2
	articleLimit = 2
)

// Searcher is the knowledge lookup used to augment the system prompt.
type Searcher interface {
	FindFAQ(ctx context.Context, query string, limit int) ([]knowledge.Hit, error)
	FindKnowledgeArticles(ctx context.Context, query string, limit int) ([]knowledge.Hit, error)
	GetGeneticReport(ctx context.Context, userID int64) (*knowledge.GeneticReport, error)
}

type ReplyRecorder interface {
	RecordReplyOrGetExisting(ctx context.Context, rep *history.Reply) (*history.Reply, bool, error)
	Completed(ctx context.Context, taskID string) (bool, error)
	RecentCompletedDesc(ctx context.Context, userID int64, limit int) ([]history.Reply, error)
}

type HandlerDeps struct {
	Models        *ai.Registry
	Prompts       *prompts.Set
	Search        Searcher
	Replies       ReplyRecorder
	Sender        transport.Sender
	Tracker       *Tracker
	Store         session.Store
	HistoryWindow int
	Log           *zap.Logger
}

// Handler turns one queued record into a chat reply.
type Handler struct {
	models        *ai.Registry
	prompts       *prompts.Set
	search        Searcher
	replies       ReplyRecorder
	sender        transport.Sender
	tracker       *Tracker
	store         session.Store
	historyWindow int
	log           *zap.Logger
	now           func() time.Time
}

func NewHandler(d HandlerDeps) *Handler {
	set := d.Prompts
	if set == nil {
		set = prompts.Default()
	}
	return &Handler{
		models:        d.Models,
		prompts:       set,
		search:        d.Search,
		replies:       d.Replies,
		sender:        d.Sender,
		tracker:       d.Tracker,
		store:         d.Store,
		historyWindow: d.HistoryWindow,
		log:           logging.OrNop(d.Log),
		now:           time.Now,
	}
}

// attempt carries per-task cleanup state so the failure path runs once.
type attempt struct {
	rec           Record
	log           *zap.Logger
	start         time.Time
	deleteTried   bool
	failedHandled bool
}

// Handle processes rec. A non-nil error means the task failed and the
// user has already been told; the caller should dead-letter the message.
func (h *Handler) Handle(ctx context.Context, rec Record) (err error) {
	if rec.Type != TypeLLM {
		return fmt.Errorf("%w: unknown type %q", ErrBadRecord, rec.Type)
	}
	a := &attempt{
		rec:   rec,
		start: h.now(),
		log: h.log.With(
			zap.String("task_id", rec.TaskID),
			zap.Int64("user_id", rec.UserID),
			zap.String("model", rec.Model),
		),
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
			h.fail(ctx, a, err)
		}
	}()

	if h.alreadyDone(ctx, a) {
		a.log.Info("task already finished, skipping redelivery")
		return nil
	}

	content, err := h.generate(ctx, a)
	if err != nil {
		h.fail(ctx, a, err)
		return err
	}

	text := markup.ToTelegramHTML(content)
	var buttons [][]transport.Button
	if rec.ShowAuthPrompt && !rec.IsAuthenticated {
		text += "\n\n" + h.prompts.Msg("auth_nudge")
		buttons = transport.Row(transport.Button{
			Text:   h.prompts.Msg("auth_prompt_button"),
			Action: transport.AuthPrompt,
		})
	}

	h.deletePlaceholder(ctx, a)
	if _, err := h.sender.Send(ctx, rec.ChatID, text, buttons); err != nil {
		err = fmt.Errorf("send reply: %w", err)
		h.fail(ctx, a, err)
		return err
	}

	if err := h.tracker.Finish(ctx, rec.TaskID, rec.UserID, StatusCompleted); err != nil {
		a.log.Warn("mark completed", zap.Error(err))
	}
	if h.store != nil {
		if err := h.store.Set(ctx, session.TaskResponseKey(rec.TaskID), content, h.tracker.resultTTL); err != nil {
			a.log.Warn("cache response", zap.Error(err))
		}
	}
	h.record(ctx, a, history.ReplyCompleted, content, nil)

	took := h.now().Sub(a.start)
	metrics.ObserveTask(string(StatusCompleted), took)
	a.log.Info("task completed", zap.Duration("took", took), zap.Int("reply_len", len(content)))
	return nil
}

func (h *Handler) alreadyDone(ctx context.Context, a *attempt) bool {
	st, found, err := h.tracker.Status(ctx, a.rec.TaskID)
	if err != nil {
		a.log.Warn("read task status", zap.Error(err))
	} else if found && st.Terminal() {
		return true
	}
	if h.replies == nil {
		return false
	}
	done, err := h.replies.Completed(ctx, a.rec.TaskID)
	if err != nil {
		a.log.Warn("check reply history", zap.Error(err))
		return false
	}
	return done
}

func (h *Handler) generate(ctx context.Context, a *attempt) (string, error) {
	p, err := h.models.Get(ctx, a.rec.Model)
	if err != nil {
		return "", err
	}

	system := h.prompts.System(a.rec.Intent)
	if extra := h.augment(ctx, a); extra != "" {
		system += "\n\n" + extra
	}

	msgs := []ai.Message{{Role: ai.RoleSystem, Content: system}}
	msgs = append(msgs, h.historyTurns(ctx, a)...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: a.rec.Query()})

	out, err := p.Chat(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", ai.ErrEmptyResponse
	}
	return out, nil
}

// augment collects knowledge base context. Every lookup is best effort.
func (h *Handler) augment(ctx context.Context, a *attempt) string {
	if h.search == nil {
		return ""
	}
	query := a.rec.Query()
	var faq, articles []knowledge.Hit
	var genetics string

	var g errgroup.Group
	g.Go(func() error {
		hits, err := h.search.FindFAQ(ctx, query, faqLimit)
		if err != nil {
			a.log.Warn("faq lookup", zap.Error(err))
			metrics.IncCollaboratorFailure("faq_search")
			return nil
		}
		faq = hits
		return nil
	})
	g.Go(func() error {
		hits, err := h.search.FindKnowledgeArticles(ctx, query, articleLimit)
		if err != nil {
			a.log.Warn("article lookup", zap.Error(err))
			metrics.IncCollaboratorFailure("article_search")
			return nil
		}
		articles = hits
		return nil
	})
	if a.rec.IsAuthenticated {
		g.Go(func() error {
			rep, err := h.search.GetGeneticReport(ctx, a.rec.UserID)
			switch {
			case err != nil:
				a.log.Warn("genetic report lookup", zap.Error(err))
				metrics.IncCollaboratorFailure("genetic_report")
				genetics = h.prompts.Augment.GeneticsUnavailable
			case rep != nil && strings.TrimSpace(rep.Data) != "":
				genetics = h.prompts.Augment.GeneticsHeader + "\n" + rep.Data
			}
			return nil
		})
	}
	_ = g.Wait()

	var sections []string
	if len(faq) > 0 {
		sections = append(sections, formatHits(h.prompts.Augment.FAQHeader, faq))
	}
	if len(articles) > 0 {
		sections = append(sections, formatHits(h.prompts.Augment.ArticlesHeader, articles))
	}
	if genetics != "" {
		sections = append(sections, genetics)
	}
	return strings.Join(sections, "\n\n")
}

func formatHits(header string, hits []knowledge.Hit) string {
	var b strings.Builder
	b.WriteString(header)
	for _, hit := range hits {
		fmt.Fprintf(&b, "\n- %s: %s", hit.Title, hit.Content)
	}
	return b.String()
}

// historyTurns returns earlier delivered exchanges, oldest first.
func (h *Handler) historyTurns(ctx context.Context, a *attempt) []ai.Message {
	if h.historyWindow <= 0 || h.replies == nil {
		return nil
	}
	recent, err := h.replies.RecentCompletedDesc(ctx, a.rec.UserID, h.historyWindow)
	if err != nil {
		a.log.Warn("load history", zap.Error(err))
		return nil
	}
	out := make([]ai.Message, 0, 2*len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		out = append(out,
			ai.Message{Role: ai.RoleUser, Content: recent[i].Query},
			ai.Message{Role: ai.RoleAssistant, Content: recent[i].Content},
		)
	}
	return out
}

func (h *Handler) deletePlaceholder(ctx context.Context, a *attempt) {
	if a.deleteTried || a.rec.WaitingMessageID == 0 {
		return
	}
	a.deleteTried = true
	if err := h.sender.Delete(ctx, a.rec.ChatID, a.rec.WaitingMessageID); err != nil {
		a.log.Warn("delete waiting message", zap.Error(err))
		metrics.IncCollaboratorFailure("transport_delete")
	}
}

// fail reports cause to the user once. Cleanup errors are only logged.
func (h *Handler) fail(ctx context.Context, a *attempt, cause error) {
	if a.failedHandled {
		return
	}
	a.failedHandled = true
	a.log.Error("task failed", zap.Error(cause))

	if err := h.tracker.Finish(ctx, a.rec.TaskID, a.rec.UserID, StatusFailed); err != nil && !errors.Is(err, ErrInvalidTransition) {
		a.log.Warn("mark failed", zap.Error(err))
	}
	h.deletePlaceholder(ctx, a)
	if _, err := h.sender.Send(ctx, a.rec.ChatID, h.prompts.Msg("task_failed"), nil); err != nil {
		a.log.Warn("send failure notice", zap.Error(err))
	}
	msg := cause.Error()
	h.record(ctx, a, history.ReplyFailed, "", &msg)
	metrics.ObserveTask(string(StatusFailed), h.now().Sub(a.start))
}

func (h *Handler) record(ctx context.Context, a *attempt, status history.ReplyStatus, content string, errMsg *string) {
	if h.replies == nil {
		return
	}
	rep := &history.Reply{
		TaskID:           a.rec.TaskID,
		UserID:           a.rec.UserID,
		ChatID:           a.rec.ChatID,
		InboundMessageID: a.rec.InboundMessageID,
		Model:            a.rec.Model,
		Intent:           a.rec.Intent,
		Query:            a.rec.UserQuery,
		RephrasedQuery:   a.rec.RephrasedQuery,
		Status:           status,
		Content:          content,
		Error:            errMsg,
	}
	if _, created, err := h.replies.RecordReplyOrGetExisting(ctx, rep); err != nil {
		a.log.Warn("record reply", zap.Error(err))
	} else if !created {
		a.log.Info("reply already recorded")
	}
}
