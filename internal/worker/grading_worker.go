package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/queue"
)

// TaskSource is the receive side of the submission queue.
type TaskSource interface {
	Receive(ctx context.Context, max int, wait time.Duration) ([]queue.Message, error)
	Delete(ctx context.Context, handle string) error
}

// Grader processes one submission task end to end.
type Grader interface {
	Process(ctx context.Context, task queue.Task) error
}

type GradingWorker struct {
	source TaskSource
	grader Grader
	batch  int
	wait   time.Duration
	log    zerolog.Logger
}

func NewGradingWorker(source TaskSource, grader Grader, batch int, wait time.Duration, log zerolog.Logger) *GradingWorker {
	return &GradingWorker{
		source: source,
		grader: grader,
		batch:  batch,
		wait:   wait,
		log:    log.With().Str("component", "grading_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop
// ----------------------------------------------------------------

// Start consumes submission tasks until ctx is cancelled. Each delivery
// in a batch is graded on its own goroutine; a panic or failure in one
// never touches the others. The loop waits for in-flight work before
// returning, so shutdown drains cleanly.
func (w *GradingWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradingWorker started")

	var inflight sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Waiting for in-flight gradings...")
			inflight.Wait()
			return
		default:
		}

		msgs, err := w.source.Receive(ctx, w.batch, w.wait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Receive error")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			inflight.Add(1)
			go func(msg queue.Message) {
				defer inflight.Done()
				w.handle(ctx, msg)
			}(msg)
		}
	}
}

// handle grades one delivery and always deletes it afterwards. A task
// that failed grading has already been recorded as a failed job, so
// leaving it on the queue would only replay the same failure after the
// visibility window.
func (w *GradingWorker) handle(ctx context.Context, msg queue.Message) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error().Interface("panic", r).Str("job_id", msg.Task.JobID.String()).Msg("grading panicked")
			}
		}()

		if err := w.grader.Process(ctx, msg.Task); err != nil {
			w.log.Error().Err(err).Str("job_id", msg.Task.JobID.String()).Msg("grading failed")
		}
	}()

	if err := w.source.Delete(ctx, msg.Handle); err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Str("job_id", msg.Task.JobID.String()).Msg("failed to delete queue message")
	}
}
