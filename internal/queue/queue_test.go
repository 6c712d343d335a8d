package queue

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testQueue(t *testing.T, visibility time.Duration) (*SubmissionQueue, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, zerolog.Nop(), visibility), server
}

func testTask() Task {
	return Task{
		JobID:       uuid.New(),
		StudentID:   uuid.New(),
		PaperID:     uuid.New(),
		InstituteID: uuid.New(),
		Answers:     []Answer{{Answer: 0}, {Answer: 3}},
	}
}

func TestEnqueueReceiveDelete(t *testing.T) {
	q, _ := testQueue(t, time.Minute)
	ctx := context.Background()

	task := testTask()
	_, err := q.Enqueue(ctx, task)
	require.NoError(t, err)

	msgs, err := q.Receive(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, task.JobID, msgs[0].Task.JobID)
	require.Equal(t, task.Answers, msgs[0].Task.Answers)
	require.False(t, msgs[0].Task.EnqueuedAt.IsZero())

	require.NoError(t, q.Delete(ctx, msgs[0].Handle))

	// Nothing left to receive or reclaim.
	msgs, err = q.Receive(ctx, 10, 150*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, msgs)
	reclaimed, err := q.ReclaimExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, reclaimed)
}

func TestReceiveBatchesUpToMax(t *testing.T) {
	q, _ := testQueue(t, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(ctx, testTask())
		require.NoError(t, err)
	}

	msgs, err := q.Receive(ctx, 3, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	rest, err := q.Receive(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, rest, 2)
}

func TestReceivedMessageInvisibleUntilReclaim(t *testing.T) {
	q, _ := testQueue(t, 50*time.Millisecond)
	ctx := context.Background()

	task := testTask()
	_, err := q.Enqueue(ctx, task)
	require.NoError(t, err)

	first, err := q.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// In-flight: a second consumer sees nothing.
	second, err := q.Receive(ctx, 1, 100*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, second)

	// After the visibility window expires the reclaim sweep requeues it.
	time.Sleep(60 * time.Millisecond)
	reclaimed, err := q.ReclaimExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, reclaimed)

	redelivered, err := q.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, redelivered, 1)
	require.Equal(t, task.JobID, redelivered[0].Task.JobID)
}

func TestDeletedMessageIsNotReclaimed(t *testing.T) {
	q, _ := testQueue(t, 50*time.Millisecond)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, testTask())
	require.NoError(t, err)

	msgs, err := q.Receive(ctx, 1, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Delete(ctx, msgs[0].Handle))

	time.Sleep(60 * time.Millisecond)
	reclaimed, err := q.ReclaimExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, reclaimed)
}

func TestIdenticalTasksDeleteIndependently(t *testing.T) {
	q, _ := testQueue(t, time.Minute)
	ctx := context.Background()

	// Same task enqueued twice: the per-delivery nonce keeps the two
	// list entries distinct, so deleting one leaves the other in flight.
	task := testTask()
	_, err := q.Enqueue(ctx, task)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, task)
	require.NoError(t, err)

	msgs, err := q.Receive(ctx, 2, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.NotEqual(t, msgs[0].Handle, msgs[1].Handle)

	require.NoError(t, q.Delete(ctx, msgs[0].Handle))

	reclaimed, err := q.ReclaimExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, reclaimed)
}

func TestMalformedEntryIsDropped(t *testing.T) {
	q, server := testQueue(t, time.Minute)
	ctx := context.Background()

	server.Lpush(q.mainKey, "not json")
	_, err := q.Enqueue(ctx, testTask())
	require.NoError(t, err)

	msgs, err := q.Receive(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}
