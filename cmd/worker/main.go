package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/adityaverma/docuchat/internal/config"
	"github.com/adityaverma/docuchat/internal/database"
	"github.com/adityaverma/docuchat/internal/embedding"
	"github.com/adityaverma/docuchat/internal/ingest"
	"github.com/adityaverma/docuchat/internal/llm"
	"github.com/adityaverma/docuchat/internal/queue"
	"github.com/adityaverma/docuchat/internal/vectorstore"
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

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	gateway := llm.NewGateway(cfg.LLM)
	embedSvc := embedding.NewService(gateway, cfg.Retrieval)
	index := vectorstore.NewPgVectorIndex(db)
	docs := ingest.NewRepository(db)
	processor := ingest.NewProcessor(docs, embedSvc, index, cfg.Ingest)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := queue.NewMux(queue.NewIngestWorker(processor))

	slog.Info("starting ingest worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
