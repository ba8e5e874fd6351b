package queue

import (
	"context"
	"fmt"

	"github.com/zero-day-ai/verdict/analyzer"
)

// Submit enqueues a on the named queue and waits for its outcome.
//
// The result channel is subscribed before the job is pushed so a worker
// cannot publish ahead of the subscription. Submit returns when the
// matching outcome arrives or ctx is done.
func Submit(ctx context.Context, c Client, queue string, a analyzer.Artifact) (*Outcome, error) {
	job := NewJob(a)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes, err := c.Subscribe(subCtx, ResultChannel(job.JobID))
	if err != nil {
		return nil, err
	}

	if err := c.Push(ctx, queue, job); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for job %s: %w", job.JobID, ctx.Err())
		case o, ok := <-outcomes:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, fmt.Errorf("waiting for job %s: %w", job.JobID, err)
				}
				return nil, fmt.Errorf("subscription for job %s closed", job.JobID)
			}
			if o.JobID != job.JobID {
				continue
			}
			return &o, nil
		}
	}
}
