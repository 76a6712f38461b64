package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/metrics"
	"github.com/suPer8Hu/nutribot/internal/transport"
)

const defaultParallel = 16

// Updates is the long polling side of *tgbotapi.BotAPI.
type Updates interface {
	API
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller reads updates and hands each one to the handler on its own
// goroutine, at most parallel at a time.
type Poller struct {
	api      Updates
	handler  transport.Handler
	parallel int
	log      *zap.Logger
}

func NewPoller(api Updates, h transport.Handler, parallel int, log *zap.Logger) *Poller {
	if parallel <= 0 {
		parallel = defaultParallel
	}
	return &Poller{api: api, handler: h, parallel: parallel, log: logging.OrNop(log)}
}

// Run polls until ctx ends, then waits for in-flight updates.
func (p *Poller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := p.api.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-gctx.Done():
			p.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			g.Go(func() error {
				p.dispatch(gctx, update)
				return nil
			})
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("update handler panic", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	if cq := update.CallbackQuery; cq != nil {
		metrics.IncInbound("callback")
		// Answer first so the client stops its spinner.
		if _, err := p.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			p.log.Warn("answer callback", zap.Error(err))
		}
		if cb, ok := toCallback(cq); ok {
			p.handler.HandleCallback(ctx, cb)
		}
		return
	}
	if m, ok := toMessage(update.Message); ok {
		if m.IsText() {
			metrics.IncInbound("text")
		} else {
			metrics.IncInbound("other")
		}
		p.handler.HandleMessage(ctx, m)
	}
}

func toMessage(msg *tgbotapi.Message) (transport.Message, bool) {
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return transport.Message{}, false
	}
	m := transport.Message{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}
	if msg.IsCommand() {
		m.Command = msg.Command()
		m.Args = msg.CommandArguments()
	}
	return m, true
}

func toCallback(cq *tgbotapi.CallbackQuery) (transport.Callback, bool) {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return transport.Callback{}, false
	}
	return transport.Callback{
		ID:        cq.ID,
		ChatID:    cq.Message.Chat.ID,
		UserID:    cq.From.ID,
		Username:  cq.From.UserName,
		MessageID: cq.Message.MessageID,
		Data:      cq.Data,
		Action:    transport.ParseAction(cq.Data),
	}, true
}
