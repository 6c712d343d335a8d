package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-grading/internal/model"
)

type fakeWindowSource struct {
	mu      sync.Mutex
	windows []model.Availability
}

func (f *fakeWindowSource) ListWindowsEndingBetween(ctx context.Context, from, to time.Time) ([]model.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Availability
	for _, w := range f.windows {
		if !w.EndTime.Before(from) && !w.EndTime.After(to) {
			out = append(out, w)
		}
	}
	return out, nil
}

type recordingPipeline struct {
	mu    sync.Mutex
	runs  []uuid.UUID
	block chan struct{} // when set, Run waits for it
}

func (p *recordingPipeline) Run(ctx context.Context, paperID uuid.UUID) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, paperID)
	return nil
}

func (p *recordingPipeline) runCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runs)
}

func (p *recordingPipeline) run(i int) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs[i]
}

func window(paperID, instituteID uuid.UUID, end time.Time) model.Availability {
	return model.Availability{
		ID:          uuid.New(),
		PaperID:     paperID,
		InstituteID: instituteID,
		StartTime:   end.Add(-time.Hour),
		EndTime:     end,
	}
}

func testOptions() Options {
	return Options{
		SweepInterval: 20 * time.Millisecond,
		LookAhead:     time.Hour,
		FireDelay:     30 * time.Millisecond,
	}
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not met within "+timeout.String())
}

func TestSchedulerFiresOncePerWindow(t *testing.T) {
	paperID := uuid.New()
	windows := &fakeWindowSource{windows: []model.Availability{
		window(paperID, uuid.New(), time.Now().Add(40*time.Millisecond)),
	}}
	pipeline := &recordingPipeline{}
	s := New(windows, pipeline, testOptions(), zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	eventually(t, 2*time.Second, func() bool { return pipeline.runCount() == 1 })

	// Several more sweeps pass over the same window; it must not refire.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, pipeline.runCount())
	require.Equal(t, paperID, pipeline.run(0))
}

func TestSchedulerOneActionPerInstituteWindow(t *testing.T) {
	paperID := uuid.New()
	end := time.Now().Add(50 * time.Millisecond)
	windows := &fakeWindowSource{windows: []model.Availability{
		window(paperID, uuid.New(), end),
		window(paperID, uuid.New(), end.Add(10*time.Millisecond)),
	}}
	pipeline := &recordingPipeline{}
	s := New(windows, pipeline, testOptions(), zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	eventually(t, 2*time.Second, func() bool { return pipeline.runCount() == 2 })
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 2, pipeline.runCount())
}

func TestSchedulerJobsSnapshot(t *testing.T) {
	paperID := uuid.New()
	instituteID := uuid.New()
	end := time.Now().Add(time.Minute)
	windows := &fakeWindowSource{windows: []model.Availability{
		window(paperID, instituteID, end),
	}}
	s := New(windows, &recordingPipeline{}, testOptions(), zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	eventually(t, time.Second, func() bool { return len(s.Jobs()) == 1 })

	jobs := s.Jobs()
	require.Equal(t, paperID, jobs[0].PaperID)
	require.Equal(t, instituteID, jobs[0].InstituteID)
	require.False(t, jobs[0].Firing)
	require.WithinDuration(t, end.Add(testOptions().FireDelay), jobs[0].FireAt, time.Second)
}

func TestSchedulerCancelPendingAction(t *testing.T) {
	paperID := uuid.New()
	windows := &fakeWindowSource{windows: []model.Availability{
		window(paperID, uuid.New(), time.Now().Add(time.Minute)),
	}}
	pipeline := &recordingPipeline{}
	s := New(windows, pipeline, testOptions(), zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	eventually(t, time.Second, func() bool { return len(s.Jobs()) == 1 })
	key := s.Jobs()[0].ScheduleKey

	require.True(t, s.Cancel(key))
	require.Empty(t, s.Jobs())
	require.False(t, s.Cancel(key))
	require.Zero(t, pipeline.runCount())
}

func TestSchedulerCancelWhileFiringIsNoop(t *testing.T) {
	paperID := uuid.New()
	windows := &fakeWindowSource{windows: []model.Availability{
		window(paperID, uuid.New(), time.Now().Add(10*time.Millisecond)),
	}}
	block := make(chan struct{})
	pipeline := &recordingPipeline{block: block}
	opts := testOptions()
	opts.FireDelay = 0
	s := New(windows, pipeline, opts, zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	// FireDelay is zero, so the action fires as soon as the window ends
	// and the entry stays marked firing while the pipeline blocks.
	eventually(t, time.Second, func() bool {
		jobs := s.Jobs()
		return len(jobs) == 1 && jobs[0].Firing
	})

	require.False(t, s.Cancel(s.Jobs()[0].ScheduleKey))

	close(block)
	eventually(t, time.Second, func() bool { return pipeline.runCount() == 1 })
	eventually(t, time.Second, func() bool { return len(s.Jobs()) == 0 })
}

func TestSchedulerManualTrigger(t *testing.T) {
	pipeline := &recordingPipeline{}
	s := New(&fakeWindowSource{}, pipeline, testOptions(), zerolog.Nop())

	// Manual trigger works without the sweep loop running at all.
	paperID := uuid.New()
	require.NoError(t, s.Trigger(context.Background(), paperID))
	require.Equal(t, 1, pipeline.runCount())
	require.Equal(t, paperID, pipeline.run(0))
}

func TestSchedulerRestartRescans(t *testing.T) {
	windows := &fakeWindowSource{windows: []model.Availability{
		window(uuid.New(), uuid.New(), time.Now().Add(time.Minute)),
	}}
	s := New(windows, &recordingPipeline{}, testOptions(), zerolog.Nop())

	require.NoError(t, s.Start())
	eventually(t, time.Second, func() bool { return len(s.Jobs()) == 1 })

	s.Stop()
	require.False(t, s.Running())
	require.Empty(t, s.Jobs())

	require.NoError(t, s.Start())
	defer s.Stop()
	require.True(t, s.Running())
	eventually(t, time.Second, func() bool { return len(s.Jobs()) == 1 })
}

func TestSchedulerStartTwice(t *testing.T) {
	s := New(&fakeWindowSource{}, &recordingPipeline{}, testOptions(), zerolog.Nop())
	require.NoError(t, s.Start())
	defer s.Stop()
	require.Error(t, s.Start())
}
