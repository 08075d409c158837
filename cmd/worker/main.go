package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/visionspeech/internal/app"
	"github.com/nikhilbhutani/visionspeech/internal/cache"
	"github.com/nikhilbhutani/visionspeech/internal/config"
	"github.com/nikhilbhutani/visionspeech/internal/queue"
	"github.com/nikhilbhutani/visionspeech/internal/queue/workers"
	"github.com/nikhilbhutani/visionspeech/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	services, err := app.Build(cfg)
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	results := cache.NewResultStore(cache.NewCache(rdb), cfg.Worker.ResultTTL)
	dispatcher := webhook.NewDispatcher(cfg.Worker.WebhookSecret)

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Logger:      newAsynqLogger(logger),
		},
	)

	registry := queue.NewHandlersRegistry()

	// Register workers
	conversionWorker := workers.NewConversionWorker(services.Converter, queueClient, results, dispatcher)

	registry.Register(queue.TypeConversionRun, asynq.HandlerFunc(conversionWorker.ProcessConversion))
	registry.Register(queue.TypeAudioPoll, asynq.HandlerFunc(conversionWorker.ProcessAudioPoll))

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency, "tts_backend", services.Synthesizer.Name())
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
