// Command campaign-rag wires the full query + indexing service together:
// config, storage, queue, indexing worker pool, stale-job sweeper, and the
// HTTP API, with graceful shutdown on SIGINT/SIGTERM. Grounded in
// cmd/metrics-server's signal-driven shutdown and legal-gateway's
// context-cancellation worker teardown.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/semaj90/campaign-rag/internal/api"
	"github.com/semaj90/campaign-rag/internal/chunker"
	"github.com/semaj90/campaign-rag/internal/config"
	"github.com/semaj90/campaign-rag/internal/embedding"
	"github.com/semaj90/campaign-rag/internal/indexing"
	"github.com/semaj90/campaign-rag/internal/llm"
	"github.com/semaj90/campaign-rag/internal/observability/tracing"
	"github.com/semaj90/campaign-rag/internal/queue"
	"github.com/semaj90/campaign-rag/internal/storage"
	"github.com/semaj90/campaign-rag/internal/store"
)

const staleJobAfter = 30 * time.Minute
const sweepInterval = 5 * time.Minute

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("starting campaign-rag", zap.String("config", cfg.String()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName)
	if err != nil {
		logger.Warn("tracing init failed, continuing without traces", zap.Error(err))
	}

	st, err := store.New(ctx, cfg.PostgresURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer st.Close()

	objectStore, err := storage.New(ctx, cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOSecure)
	if err != nil {
		logger.Fatal("failed to connect to object storage", zap.Error(err))
	}

	embedClient := embedding.New(cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.EmbeddingTimeout, cfg.IndexingConcurrency)

	provider := newLLMProvider(cfg)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("invalid redis URL", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	q := queue.New(rdb, cfg.IndexQueueName)

	worker := &indexing.Worker{
		Store:          st,
		Storage:        objectStore,
		Embedding:      embedClient,
		Queue:          q,
		Logger:         logger,
		ChunkerOptions: chunker.DefaultOptions(chunker.StrategyFixed),
		EmbedBatchSize: cfg.EmbeddingBatchSize,
	}
	go indexing.Run(ctx, worker, q, cfg.IndexingConcurrency, cfg.IndexingAttemptMax)

	sweeper := queue.NewStaleSweeper(q, staleJobAfter, logger)
	sweeper.Start(sweepInterval)
	defer sweeper.Stop()

	server := &api.Server{
		Store:     st,
		Storage:   objectStore,
		Embedding: embedClient,
		LLM:       provider,
		Queue:     q,
		Config:    cfg,
		Logger:    logger,
	}
	router := api.NewRouter(server)

	httpServer := &http.Server{Addr: cfg.HTTPPort, Handler: router}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown requested")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown error", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

func newLLMProvider(cfg *config.Config) llm.Provider {
	if cfg.LLMProvider == "openai" {
		return llm.NewCloudProvider(cfg.LLMAPIKey, cfg.LLMBaseURL)
	}
	return llm.NewLocalProvider(cfg.LLMBaseURL, cfg.EmbeddingTimeout)
}
