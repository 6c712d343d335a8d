package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
)

// StatsBuilder recomputes a paper's stats document.
type StatsBuilder interface {
	Build(ctx context.Context, paperID uuid.UUID) (*model.PaperStats, error)
}

// RankCalculator recomputes submission ranks for a paper.
type RankCalculator interface {
	Recalculate(ctx context.Context, paperID uuid.UUID) (int, error)
}

// PostClosePipeline runs the two-stage post-close processing for a paper:
// stats aggregation, a short pause so the ranking pass does not overlap
// the aggregation reads, then rank recalculation.
type PostClosePipeline struct {
	stats   StatsBuilder
	ranking RankCalculator
	pause   time.Duration
	log     zerolog.Logger
}

// NewPostClosePipeline creates a new PostClosePipeline.
func NewPostClosePipeline(stats StatsBuilder, ranking RankCalculator, pause time.Duration, log zerolog.Logger) *PostClosePipeline {
	return &PostClosePipeline{
		stats:   stats,
		ranking: ranking,
		pause:   pause,
		log:     log.With().Str("component", "post_close_pipeline").Logger(),
	}
}

// Run executes both stages sequentially. The first failing stage aborts
// the pipeline; the previous stats document stays intact in that case.
func (p *PostClosePipeline) Run(ctx context.Context, paperID uuid.UUID) error {
	p.log.Info().Str("paper_id", paperID.String()).Msg("post-close processing started")

	if _, err := p.stats.Build(ctx, paperID); err != nil {
		return fmt.Errorf("build stats: %w", err)
	}

	if p.pause > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pause):
		}
	}

	ranked, err := p.ranking.Recalculate(ctx, paperID)
	if err != nil {
		return fmt.Errorf("recalculate ranks: %w", err)
	}

	p.log.Info().
		Str("paper_id", paperID.String()).
		Int("ranked", ranked).
		Msg("post-close processing completed")
	return nil
}
