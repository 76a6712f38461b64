package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/nutribot/internal/ai"
	"github.com/suPer8Hu/nutribot/internal/config"
	"github.com/suPer8Hu/nutribot/internal/db"
	"github.com/suPer8Hu/nutribot/internal/history"
	"github.com/suPer8Hu/nutribot/internal/httpapi"
	"github.com/suPer8Hu/nutribot/internal/httpapi/handlers"
	"github.com/suPer8Hu/nutribot/internal/knowledge"
	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/metrics"
	"github.com/suPer8Hu/nutribot/internal/prompts"
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
		log.Fatal("worker stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

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
	tracker := task.NewTracker(store, cfg.TaskStatusTTL, cfg.TaskResultTTL)

	// Provider registry, routed by the model the user picked
	reg := ai.NewRegistry()
	reg.Register(string(session.ModelChatGPT), func(context.Context) (ai.Provider, error) {
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout), nil
	})
	reg.Register(string(session.ModelYandexGPT), func(context.Context) (ai.Provider, error) {
		return ai.NewYandexProvider(cfg.YandexBaseURL, cfg.YandexAPIKey, cfg.YandexFolderID, cfg.YandexModel, cfg.LLMTimeout), nil
	})

	api, err := telegram.NewBotAPI(cfg.BotToken, cfg.BotDebug)
	if err != nil {
		return err
	}

	handler := task.NewHandler(task.HandlerDeps{
		Models:        reg,
		Prompts:       prompts.Default(),
		Search:        kb,
		Replies:       replies,
		Sender:        telegram.NewSender(api),
		Tracker:       tracker,
		Store:         store,
		HistoryWindow: cfg.HistoryWindow,
		Log:           log,
	})

	// strict concurrency control: prefetch matches the pool size
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency, log)
	if err != nil {
		return err
	}
	defer func() { _ = consumer.Close() }()

	deliveries, err := consumer.Deliveries(ctx)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(handlers.NewHandler(tracker, replies, kb, store, log), cfg.JWTSecret, log)

	log.Info("worker started", zap.String("queue", cfg.RabbitQueue), zap.Int("concurrency", cfg.WorkerConcurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w := task.NewWorker(handler.Handle, cfg.WorkerConcurrency, log)
		return w.Run(gctx, deliveries)
	})
	g.Go(func() error {
		return httpapi.Serve(gctx, cfg.WorkerHTTPAddr, router, log)
	})
	return g.Wait()
}
