package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"careercraft/internal/ai"
	"careercraft/internal/config"
	"careercraft/internal/database"
	"careercraft/internal/metrics"
	"careercraft/internal/tasks"
	"careercraft/internal/worker"
)

func main() {
	cfg := config.MustGet()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	aiClient, err := ai.NewClient(context.Background(), cfg.AI)
	if err != nil {
		log.Fatalf("init ai client: %v", err)
	}
	logger.Info("ai client ready", slog.String("model", cfg.AI.Model))

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr}, asynq.Config{
		Concurrency: 10,
	})

	analysisHandler := worker.NewAnalysisTaskHandler(db, aiClient, redisClient, logger, cfg.AI.Model, cfg.AI.Provider)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeAnalysisRun, analysisHandler)

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
