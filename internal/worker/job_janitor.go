package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const JanitorInterval = 1 * time.Hour

// JobPruner deletes terminal job records older than a cutoff.
type JobPruner interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobJanitor removes completed and failed job records once their
// retention period has passed. Queued and processing jobs are never
// touched regardless of age.
type JobJanitor struct {
	jobs      JobPruner
	retention time.Duration
	log       zerolog.Logger
}

func NewJobJanitor(jobs JobPruner, retention time.Duration, log zerolog.Logger) *JobJanitor {
	return &JobJanitor{
		jobs:      jobs,
		retention: retention,
		log:       log.With().Str("component", "job_janitor").Logger(),
	}
}

func (j *JobJanitor) Start(ctx context.Context) {
	j.log.Info().Dur("retention", j.retention).Msg("JobJanitor started")

	ticker := time.NewTicker(JanitorInterval)
	defer ticker.Stop()

	j.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.prune(ctx)
		}
	}
}

func (j *JobJanitor) prune(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)
	deleted, err := j.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			j.log.Error().Err(err).Msg("job pruning failed")
		}
		return
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("expired job records pruned")
	}
}
