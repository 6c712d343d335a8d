package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
)

const receivePollInterval = 100 * time.Millisecond

// Answer is one selected option index within a queued submission payload.
type Answer struct {
	Answer int `json:"answer"`
}

// Task is the ungraded submission payload carried by the queue.
type Task struct {
	JobID       uuid.UUID `json:"job_id"`
	StudentID   uuid.UUID `json:"student_id"`
	PaperID     uuid.UUID `json:"paper_id"`
	InstituteID uuid.UUID `json:"institute_id"`
	Answers     []Answer  `json:"answers"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// envelope wraps a task with a per-delivery nonce so the raw entry is a
// unique list element that LREM can target exactly.
type envelope struct {
	Nonce string `json:"nonce"`
	Task  Task   `json:"task"`
}

// Message is one received delivery. Handle is opaque to callers and must
// be passed back to Delete after successful processing.
type Message struct {
	Task   Task
	Handle string
}

// SubmissionQueue is a Redis-backed at-least-once delivery channel.
//
// Enqueue pushes onto a main list. Receive moves entries onto a
// processing list and registers a visibility deadline in a sorted set.
// Entries whose deadline expires before Delete are pushed back onto the
// main list by the reclaim sweep, so a crashed consumer's messages are
// redelivered after the visibility window.
type SubmissionQueue struct {
	rdb        *redis.Client
	log        zerolog.Logger
	visibility time.Duration

	mainKey       string
	processingKey string
	deadlineKey   string
}

// New creates a SubmissionQueue using the shared queue key names.
func New(rdb *redis.Client, log zerolog.Logger, visibility time.Duration) *SubmissionQueue {
	return &SubmissionQueue{
		rdb:           rdb,
		log:           log.With().Str("component", "submission_queue").Logger(),
		visibility:    visibility,
		mainKey:       config.QueueKey.SubmissionQueue,
		processingKey: config.QueueKey.SubmissionProcessingQueue,
		deadlineKey:   config.QueueKey.SubmissionDeadlines,
	}
}

// Enqueue appends a task to the queue and returns the delivery nonce.
func (q *SubmissionQueue) Enqueue(ctx context.Context, task Task) (string, error) {
	task.EnqueuedAt = time.Now().UTC()

	env := envelope{Nonce: uuid.New().String(), Task: task}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}

	if err := q.rdb.RPush(ctx, q.mainKey, raw).Err(); err != nil {
		return "", err
	}
	return env.Nonce, nil
}

// Receive pulls up to max messages, long-polling for at most wait. Each
// returned message stays invisible to other consumers for the visibility
// window; callers must Delete it after successful processing.
//
// Returns as soon as at least one message is available or the wait
// expires. A malformed entry is dropped and logged rather than returned.
func (q *SubmissionQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	deadline := time.Now().Add(wait)

	var msgs []Message
	for len(msgs) < max {
		raw, err := q.rdb.LMove(ctx, q.mainKey, q.processingKey, "LEFT", "RIGHT").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if len(msgs) > 0 || time.Now().After(deadline) {
					return msgs, nil
				}
				select {
				case <-ctx.Done():
					return msgs, ctx.Err()
				case <-time.After(receivePollInterval):
				}
				continue
			}
			return msgs, err
		}

		expiry := float64(time.Now().Add(q.visibility).UnixMilli())
		if err := q.rdb.ZAdd(ctx, q.deadlineKey, redis.Z{Score: expiry, Member: raw}).Err(); err != nil {
			q.log.Error().Err(err).Msg("register visibility deadline failed")
		}

		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			q.log.Error().Err(err).Msg("Invalid JSON payload, dropping entry")
			q.rdb.LRem(ctx, q.processingKey, 1, raw)
			q.rdb.ZRem(ctx, q.deadlineKey, raw)
			continue
		}

		msgs = append(msgs, Message{Task: env.Task, Handle: raw})
	}
	return msgs, nil
}

// Delete acknowledges a processed message so it is never redelivered.
func (q *SubmissionQueue) Delete(ctx context.Context, handle string) error {
	if err := q.rdb.LRem(ctx, q.processingKey, 1, handle).Err(); err != nil {
		return err
	}
	return q.rdb.ZRem(ctx, q.deadlineKey, handle).Err()
}

// ReclaimExpired moves in-flight entries whose visibility deadline has
// passed back onto the main list. Returns the number of entries reclaimed.
func (q *SubmissionQueue) ReclaimExpired(ctx context.Context) (int, error) {
	now := float64(time.Now().UnixMilli())
	expired, err := q.rdb.ZRangeByScore(ctx, q.deadlineKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: formatScore(now),
	}).Result()
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, raw := range expired {
		removed, err := q.rdb.LRem(ctx, q.processingKey, 1, raw).Result()
		if err != nil {
			return reclaimed, err
		}
		if removed > 0 {
			if err := q.rdb.RPush(ctx, q.mainKey, raw).Err(); err != nil {
				return reclaimed, err
			}
			reclaimed++
		}
		q.rdb.ZRem(ctx, q.deadlineKey, raw)
	}

	if reclaimed > 0 {
		q.log.Warn().Int("count", reclaimed).Msg("reclaimed expired in-flight messages")
	}
	return reclaimed, nil
}

// StartReclaimer runs the reclaim sweep on a fixed interval until ctx is
// cancelled. Run it once per process alongside the consumer loop.
func (q *SubmissionQueue) StartReclaimer(ctx context.Context, interval time.Duration) {
	q.log.Info().Dur("interval", interval).Msg("Queue reclaimer started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.log.Info().Msg("Queue reclaimer stopped")
			return
		case <-ticker.C:
			if _, err := q.ReclaimExpired(ctx); err != nil && ctx.Err() == nil {
				q.log.Error().Err(err).Msg("reclaim sweep failed")
			}
		}
	}
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
