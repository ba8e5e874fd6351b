package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/verdict/fusion"
	"github.com/zero-day-ai/verdict/record"
)

// respond pops one job and publishes a canned outcome, first for a foreign
// job ID and then for the popped job.
func respond(t *testing.T, client *RedisClient) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var job *Job
	for job == nil {
		var err error
		job, err = client.Pop(ctx, "default")
		if err != nil {
			t.Errorf("pop: %v", err)
			return
		}
	}

	decision := fusion.Default().Fuse(
		record.Record{Role: record.RoleContent, Verdict: record.VerdictMalicious, Confidence: 1},
		record.Record{Role: record.RoleReference, Verdict: record.VerdictMalicious, Confidence: 1},
		record.Unsure(record.RoleMetadata, "none"),
	)

	_ = client.Publish(ctx, ResultChannel(job.JobID), Outcome{JobID: "someone-else", WorkerID: "w", StartedAt: 1, CompletedAt: 1, Error: "x"})
	_ = client.Publish(ctx, ResultChannel(job.JobID), Outcome{
		JobID:       job.JobID,
		Decision:    &decision,
		WorkerID:    "w",
		StartedAt:   1,
		CompletedAt: 2,
	})
}

func TestSubmit(t *testing.T) {
	t.Run("returns matching outcome", func(t *testing.T) {
		client, _ := setupTestClient(t)
		go respond(t, client)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		outcome, err := Submit(ctx, client, "default", testArtifact())
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.False(t, outcome.HasError())
		require.NotNil(t, outcome.Decision)
		assert.Equal(t, record.VerdictMalicious, outcome.Decision.Verdict)
		assert.InDelta(t, 0.8, outcome.Decision.Score, 1e-9)
	})

	t.Run("context deadline without worker", func(t *testing.T) {
		client, mr := setupTestClient(t)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		outcome, err := Submit(ctx, client, "idle", testArtifact())
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, outcome)

		items, lerr := mr.List(QueueKey("idle"))
		require.NoError(t, lerr)
		assert.Len(t, items, 1)
	})
}
