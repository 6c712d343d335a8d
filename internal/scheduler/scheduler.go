package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/model"
)

// idleTimerInterval is the timer period used while no actions are pending.
const idleTimerInterval = 24 * time.Hour

// WindowSource lists availability windows closing within a time range.
type WindowSource interface {
	ListWindowsEndingBetween(ctx context.Context, from, to time.Time) ([]model.Availability, error)
}

// Pipeline is the post-close processing invoked when a window fires.
type Pipeline interface {
	Run(ctx context.Context, paperID uuid.UUID) error
}

// Options tunes the sweep cadence and firing behavior.
type Options struct {
	// SweepInterval is how often closing windows are scanned for.
	SweepInterval time.Duration
	// LookAhead bounds a sweep to windows ending within this duration.
	LookAhead time.Duration
	// FireDelay is added to a window's end time before the pipeline runs.
	FireDelay time.Duration
}

// ScheduledJob is a snapshot of one pending action for the admin API.
type ScheduledJob struct {
	ScheduleKey string    `json:"schedule_key"`
	PaperID     uuid.UUID `json:"paper_id"`
	InstituteID uuid.UUID `json:"institute_id"`
	FireAt      time.Time `json:"fire_at"`
	Firing      bool      `json:"firing"`
}

type entry struct {
	key         string
	paperID     uuid.UUID
	instituteID uuid.UUID
	fireAt      time.Time
	firing      bool
	index       int // heap position, -1 once removed or firing
}

// Scheduler owns the pending post-close actions for papers whose
// availability windows are about to end. A single goroutine holds the
// (paperID, instituteID) → action map and the min-heap of due times; all
// mutation — sweep results, cancellation, fire completion — flows
// through its loop, so firing an action is mutually exclusive with
// cancelling it. Nothing is persisted: a restart rescans from scratch,
// bounded by the look-ahead window.
type Scheduler struct {
	windows  WindowSource
	pipeline Pipeline
	opts     Options
	log      zerolog.Logger

	mu     sync.Mutex // guards lifecycle fields below
	cancel context.CancelFunc
	done   chan struct{}
	cmds   chan any
}

type cancelCmd struct {
	key   string
	reply chan bool
}

type listCmd struct {
	reply chan []ScheduledJob
}

type fireDoneCmd struct {
	key string
}

// New creates a Scheduler. Call Start to begin sweeping.
func New(windows WindowSource, pipeline Pipeline, opts Options, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		windows:  windows,
		pipeline: pipeline,
		opts:     opts,
		log:      log.With().Str("component", "paper_scheduler").Logger(),
	}
}

// Start launches the sweep loop. It sweeps once immediately, then on
// every interval. Returns an error if the scheduler is already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.cmds = make(chan any)

	go s.run(ctx, s.cmds, s.done)
	s.log.Info().
		Dur("sweep_interval", s.opts.SweepInterval).
		Dur("look_ahead", s.opts.LookAhead).
		Msg("Paper scheduler started")
	return nil
}

// Stop cancels the sweep loop and every pending action, then waits for
// the loop to exit. In-flight pipeline runs are cancelled through their
// context. Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info().Msg("Paper scheduler stopped")
}

// Running reports whether the sweep loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Jobs returns a snapshot of all pending actions. Empty when stopped.
func (s *Scheduler) Jobs() []ScheduledJob {
	cmds, done, running := s.loopChannels()
	if !running {
		return nil
	}
	reply := make(chan []ScheduledJob, 1)
	select {
	case cmds <- listCmd{reply: reply}:
		return <-reply
	case <-done:
		return nil
	}
}

// Cancel removes one pending action by its schedule key. Returns false
// for unknown keys and for actions currently firing — a mid-fire cancel
// is a safe no-op, the action still cleans itself up afterwards.
func (s *Scheduler) Cancel(key string) bool {
	cmds, done, running := s.loopChannels()
	if !running {
		return false
	}
	reply := make(chan bool, 1)
	select {
	case cmds <- cancelCmd{key: key, reply: reply}:
		return <-reply
	case <-done:
		return false
	}
}

// Trigger runs the post-close pipeline for a paper immediately,
// independent of the windowing logic. The synthetic key is only ever
// logged, so it cannot collide with an automatic entry.
func (s *Scheduler) Trigger(ctx context.Context, paperID uuid.UUID) error {
	key := fmt.Sprintf("manual_%s_%d", paperID, time.Now().UnixNano())
	s.log.Info().Str("schedule_key", key).Str("paper_id", paperID.String()).Msg("manual processing triggered")
	return s.pipeline.Run(ctx, paperID)
}

func (s *Scheduler) loopChannels() (chan any, chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmds, s.done, s.cancel != nil
}

// ─── Loop ──────────────────────────────────────────────────────────────

func (s *Scheduler) run(ctx context.Context, cmds chan any, done chan struct{}) {
	defer close(done)

	entries := make(map[string]*entry)
	due := &dueHeap{}

	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	timer := time.NewTimer(idleTimerInterval)
	defer timer.Stop()

	s.sweep(ctx, cmds, entries, due)
	resetTimer(timer, due)

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.sweep(ctx, cmds, entries, due)
			resetTimer(timer, due)

		case <-timer.C:
			now := time.Now()
			for due.Len() > 0 && !(*due)[0].fireAt.After(now) {
				e := heap.Pop(due).(*entry)
				e.firing = true
				go s.execute(ctx, cmds, e.key, e.paperID)
			}
			resetTimer(timer, due)

		case raw := <-cmds:
			switch cmd := raw.(type) {
			case cancelCmd:
				e, ok := entries[cmd.key]
				if !ok || e.firing {
					cmd.reply <- false
					break
				}
				heap.Remove(due, e.index)
				delete(entries, cmd.key)
				s.log.Info().Str("schedule_key", cmd.key).Msg("scheduled action cancelled")
				cmd.reply <- true
				resetTimer(timer, due)

			case listCmd:
				jobs := make([]ScheduledJob, 0, len(entries))
				for _, e := range entries {
					jobs = append(jobs, ScheduledJob{
						ScheduleKey: e.key,
						PaperID:     e.paperID,
						InstituteID: e.instituteID,
						FireAt:      e.fireAt,
						Firing:      e.firing,
					})
				}
				cmd.reply <- jobs

			case fireDoneCmd:
				delete(entries, cmd.key)
			}
		}
	}
}

// sweep scans for windows ending within the look-ahead and schedules one
// action per (paper, institute) pair not already tracked. A fire time
// already in the past (e.g. right after a restart) executes immediately.
func (s *Scheduler) sweep(ctx context.Context, cmds chan any, entries map[string]*entry, due *dueHeap) {
	now := time.Now()
	windows, err := s.windows.ListWindowsEndingBetween(ctx, now, now.Add(s.opts.LookAhead))
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("sweep query failed")
		}
		return
	}

	for _, w := range windows {
		key := scheduleKey(w.PaperID, w.InstituteID)
		if _, ok := entries[key]; ok {
			continue
		}
		if w.EndTime.Before(now) {
			continue
		}

		e := &entry{
			key:         key,
			paperID:     w.PaperID,
			instituteID: w.InstituteID,
			fireAt:      w.EndTime.Add(s.opts.FireDelay),
			index:       -1,
		}
		entries[key] = e

		if !e.fireAt.After(now) {
			s.log.Info().Str("schedule_key", key).Msg("fire time already passed, executing immediately")
			e.firing = true
			go s.execute(ctx, cmds, e.key, e.paperID)
			continue
		}

		heap.Push(due, e)
		s.log.Info().
			Str("schedule_key", key).
			Time("fire_at", e.fireAt).
			Msg("post-close processing scheduled")
	}
}

// execute runs the pipeline off the loop goroutine and reports back so
// the entry is removed regardless of success or failure. A failed run is
// not retried here; the manual trigger covers recovery.
func (s *Scheduler) execute(ctx context.Context, cmds chan any, key string, paperID uuid.UUID) {
	if err := s.pipeline.Run(ctx, paperID); err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Str("schedule_key", key).Msg("post-close processing failed")
		}
	}

	select {
	case cmds <- fireDoneCmd{key: key}:
	case <-ctx.Done():
	}
}

func scheduleKey(paperID, instituteID uuid.UUID) string {
	return fmt.Sprintf("%s_%s", paperID, instituteID)
}

func resetTimer(timer *time.Timer, due *dueHeap) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	if due.Len() == 0 {
		timer.Reset(idleTimerInterval)
		return
	}
	wait := time.Until((*due)[0].fireAt)
	if wait < 0 {
		wait = 0
	}
	timer.Reset(wait)
}

// ─── Min-heap of due times ─────────────────────────────────────────────

type dueHeap []*entry

func (h dueHeap) Len() int           { return len(h) }
func (h dueHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }

func (h dueHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *dueHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
