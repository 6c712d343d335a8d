package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/database"
	"github.com/stemsi/exstem-grading/internal/logger"
	"github.com/stemsi/exstem-grading/internal/queue"
	"github.com/stemsi/exstem-grading/internal/repository"
	"github.com/stemsi/exstem-grading/internal/service"
	"github.com/stemsi/exstem-grading/internal/worker"
)

// Standalone grading consumer. Runs the same worker loop the server
// embeds, for deployments that scale grading independently of the API.
func main() {
	cfg := config.Load()

	log := logger.Setup("grading-worker", cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("log_level", cfg.LogLevel).Msg("Starting ExStem Grading worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	jobRepo := repository.NewJobRepository(pool)
	paperRepo := repository.NewPaperRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)

	submissionQueue := queue.New(rdb, log, cfg.QueueVisibilityTimeout)
	gradingService := service.NewGradingService(jobRepo, paperRepo, submissionRepo, log)
	gradingWorker := worker.NewGradingWorker(submissionQueue, gradingService, cfg.QueueReceiveBatch, cfg.QueueReceiveWait, log)
	janitor := worker.NewJobJanitor(jobRepo, cfg.JobRetention, log)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	go gradingWorker.Start(workerCtx)
	go janitor.Start(workerCtx)
	go submissionQueue.StartReclaimer(workerCtx, cfg.QueueVisibilityTimeout/2)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	workerCancel()
	time.Sleep(2 * time.Second) // Allow the worker to drain.

	log.Info().Msg("Shutdown complete")
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
