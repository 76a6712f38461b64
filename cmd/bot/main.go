package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/nutribot/internal/ai"
	"github.com/suPer8Hu/nutribot/internal/auth"
	"github.com/suPer8Hu/nutribot/internal/bot"
	"github.com/suPer8Hu/nutribot/internal/config"
	"github.com/suPer8Hu/nutribot/internal/db"
	"github.com/suPer8Hu/nutribot/internal/history"
	"github.com/suPer8Hu/nutribot/internal/httpapi"
	"github.com/suPer8Hu/nutribot/internal/httpapi/handlers"
	"github.com/suPer8Hu/nutribot/internal/intent"
	"github.com/suPer8Hu/nutribot/internal/knowledge"
	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/metrics"
	"github.com/suPer8Hu/nutribot/internal/mygenetics"
	"github.com/suPer8Hu/nutribot/internal/prompts"
	"github.com/suPer8Hu/nutribot/internal/ratelimit"
	"github.com/suPer8Hu/nutribot/internal/secrets"
	"github.com/suPer8Hu/nutribot/internal/session"
	"github.com/suPer8Hu/nutribot/internal/store/rabbitmq"
	"github.com/suPer8Hu/nutribot/internal/store/redisstore"
	"github.com/suPer8Hu/nutribot/internal/task"
	"github.com/suPer8Hu/nutribot/internal/telegram"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("bot stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()
	set := prompts.Default()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	replies := history.NewRepo(gdb)
	kb := knowledge.NewRepo(gdb)

	rdb := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()
	if err := redisstore.Ping(ctx, rdb); err != nil {
		return err
	}
	store := redisstore.New(rdb)

	sealer, err := secrets.New(cfg.CredentialsKey, cfg.JWTSecret)
	if err != nil {
		return err
	}
	flow := auth.NewFlow(store, mygenetics.New(cfg.MyGeneticsBaseURL, cfg.LLMTimeout, log), sealer,
		auth.Options{TTL: cfg.AuthTTL, PromptCooldown: cfg.AuthPromptCooldown}, log)

	classifierLLM := ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIClassifierModel, cfg.LLMTimeout)
	lock := intent.NewLock(store, cfg.IntentLockRequests)
	tracker := task.NewTracker(store, cfg.TaskStatusTTL, cfg.TaskResultTTL)

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	dispatcher := task.NewDispatcher(task.DispatcherDeps{
		Lock:       lock,
		Classifier: intent.NewClassifier(classifierLLM, store, set, log),
		Rephraser:  intent.NewRephraser(classifierLLM, store, set, log),
		Auth:       flow,
		Tracker:    tracker,
		Publisher:  pub,
		Log:        log,
	})

	api, err := telegram.NewBotAPI(cfg.BotToken, cfg.BotDebug)
	if err != nil {
		return err
	}
	log.Info("authorized", zap.String("username", api.Self.UserName))

	h := bot.NewHandler(bot.Deps{
		Sender:       telegram.NewSender(api),
		Limiter:      ratelimit.New(store, cfg.RateLimitMax, cfg.RateLimitWindow, log),
		Users:        session.NewUsers(store),
		Auth:         flow,
		Lock:         lock,
		Tracker:      tracker,
		Dispatcher:   dispatcher,
		Reports:      kb,
		Interactions: replies,
		Prompts:      set,
		Log:          log,
	})

	router := httpapi.NewRouter(handlers.NewHandler(tracker, replies, kb, store, log), cfg.JWTSecret, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegram.NewPoller(api, h, 0, log).Run(gctx)
	})
	g.Go(func() error {
		return httpapi.Serve(gctx, cfg.HTTPAddr, router, log)
	})
	return g.Wait()
}
