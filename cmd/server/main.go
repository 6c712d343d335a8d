package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/database"
	"github.com/stemsi/exstem-grading/internal/handler"
	"github.com/stemsi/exstem-grading/internal/logger"
	"github.com/stemsi/exstem-grading/internal/queue"
	"github.com/stemsi/exstem-grading/internal/repository"
	"github.com/stemsi/exstem-grading/internal/router"
	"github.com/stemsi/exstem-grading/internal/scheduler"
	"github.com/stemsi/exstem-grading/internal/service"
	"github.com/stemsi/exstem-grading/internal/validator"
	"github.com/stemsi/exstem-grading/internal/worker"
)

// rankPipelinePause keeps the ranking pass from overlapping the stats
// aggregation reads against the same submissions.
const rankPipelinePause = 2 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup("grading-api", cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Grading")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	jobRepo := repository.NewJobRepository(pool)
	paperRepo := repository.NewPaperRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	statsRepo := repository.NewPaperStatsRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	instituteRepo := repository.NewInstituteRepository(pool)

	// ─── Initialize Queue and Services ─────────────────────────────────
	submissionQueue := queue.New(rdb, log, cfg.QueueVisibilityTimeout)

	authService := service.NewAuthService(cfg)
	jobService := service.NewJobService(jobRepo, submissionQueue, log)
	gradingService := service.NewGradingService(jobRepo, paperRepo, submissionRepo, log)
	statsService := service.NewStatsService(paperRepo, submissionRepo, statsRepo, log)
	rankingService := service.NewRankingService(paperRepo, submissionRepo, log)
	leaderboardService := service.NewLeaderboardService(paperRepo, submissionRepo, statsRepo, studentRepo, instituteRepo, log)
	insightService := service.NewStudentInsightService(paperRepo, submissionRepo, log)
	pipeline := service.NewPostClosePipeline(statsService, rankingService, rankPipelinePause, log)

	// ─── Initialize Scheduler ──────────────────────────────────────────
	sched := scheduler.New(paperRepo, pipeline, scheduler.Options{
		SweepInterval: cfg.SchedulerSweepInterval,
		LookAhead:     cfg.SchedulerLookAhead,
		FireDelay:     cfg.SchedulerFireDelay,
	}, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Submission:     handler.NewSubmissionHandler(jobService),
		PaperStats:     handler.NewPaperStatsHandler(leaderboardService, insightService, pipeline),
		StudentInsight: handler.NewStudentInsightHandler(insightService),
		Scheduler:      handler.NewSchedulerHandler(sched),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	gradingWorker := worker.NewGradingWorker(submissionQueue, gradingService, cfg.QueueReceiveBatch, cfg.QueueReceiveWait, log)
	janitor := worker.NewJobJanitor(jobRepo, cfg.JobRetention, log)

	go gradingWorker.Start(workerCtx)
	go janitor.Start(workerCtx)
	go submissionQueue.StartReclaimer(workerCtx, cfg.QueueVisibilityTimeout/2)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the scheduler so no new pipeline runs begin.
	sched.Stop()

	// 3. Stop background workers and wait for in-flight gradings to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
