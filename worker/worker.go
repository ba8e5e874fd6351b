package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	verdict "github.com/zero-day-ai/verdict"
	"github.com/zero-day-ai/verdict/analyzer"
	"github.com/zero-day-ai/verdict/config"
	"github.com/zero-day-ai/verdict/pipeline"
	"github.com/zero-day-ai/verdict/queue"
)

const (
	defaultConcurrency       = 4
	defaultShutdownTimeout   = 30 * time.Second
	defaultHeartbeatInterval = 10 * time.Second

	// errorBackoff paces the loop after a failed pop.
	errorBackoff = 500 * time.Millisecond

	cleanupTimeout = 5 * time.Second
)

// Runner runs one artifact through analysis and fusion.
// *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, a analyzer.Artifact) pipeline.Result
}

// Health receives serving transitions. *serve.Server satisfies it.
type Health interface {
	SetServing()
	SetNotServing()
}

// Options configures the worker behavior.
type Options struct {
	// Queue is the queue name to consume. Default: "default".
	Queue string

	// Concurrency is the number of worker goroutines to start. Default: 4.
	Concurrency int

	// ShutdownTimeout is the time in-flight jobs get after cancellation.
	// Default: 30s.
	ShutdownTimeout time.Duration

	// HeartbeatInterval is the interval between health heartbeats.
	// Default: 10s.
	HeartbeatInterval time.Duration

	// Logger is the structured logger for worker operations.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// Health, if set, is marked SERVING once the loops start and
	// NOT_SERVING when shutdown begins.
	Health Health

	// WorkerID overrides the generated hostname-pid-uuid identifier.
	WorkerID string
}

// OptionsFromConfig maps the worker section of a config file onto Options.
// A nil section yields the defaults.
func OptionsFromConfig(cfg *config.WorkerConfig) Options {
	return Options{
		Queue:             cfg.GetQueue(),
		Concurrency:       cfg.GetConcurrency(),
		ShutdownTimeout:   cfg.GetShutdownTimeout(),
		HeartbeatInterval: cfg.GetHeartbeatInterval(),
	}
}

func (o Options) withDefaults() Options {
	if o.Queue == "" {
		o.Queue = "default"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = defaultHeartbeatInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.WorkerID == "" {
		o.WorkerID = generateWorkerID()
	}
	return o
}

// Run consumes jobs from opts.Queue until ctx is cancelled.
//
// In-flight jobs keep running after cancellation and are cancelled only
// once ShutdownTimeout elapses, in which case Run returns a timeout error.
// A clean shutdown returns nil.
func Run(ctx context.Context, r Runner, client queue.Client, opts Options) error {
	if r == nil {
		return verdict.NewConfigurationError("worker.Run",
			fmt.Errorf("%w: runner is required", verdict.ErrInvalidConfig))
	}
	if client == nil {
		return verdict.NewConfigurationError("worker.Run",
			fmt.Errorf("%w: queue client is required", verdict.ErrInvalidConfig))
	}

	opts = opts.withDefaults()
	logger := opts.Logger.With("worker_id", opts.WorkerID, "queue", opts.Queue)

	logger.Info("worker starting", "concurrency", opts.Concurrency)

	if err := client.IncrementWorkerCount(ctx, opts.Queue); err != nil {
		logger.Error("failed to increment worker count", "error", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := client.DecrementWorkerCount(cleanupCtx, opts.Queue); err != nil {
			logger.Error("failed to decrement worker count", "error", err)
		}
	}()

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go runHeartbeat(heartbeatCtx, client, opts.Queue, opts.HeartbeatInterval, logger)

	// Jobs outlive ctx until the shutdown timeout.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	w := &worker{
		runner:   r,
		client:   client,
		queue:    opts.Queue,
		workerID: opts.WorkerID,
		jobCtx:   jobCtx,
	}

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			w.loop(ctx, logger.With("worker_num", workerNum))
		}(i)
	}

	if opts.Health != nil {
		opts.Health.SetServing()
	}
	logger.Info("worker started", "workers", opts.Concurrency)

	<-ctx.Done()
	logger.Info("initiating graceful shutdown")
	if opts.Health != nil {
		opts.Health.SetNotServing()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("worker shutdown complete")
		return nil
	case <-time.After(opts.ShutdownTimeout):
		logger.Warn("worker shutdown timeout exceeded", "timeout", opts.ShutdownTimeout)
		cancelJobs()
		return verdict.NewTimeoutError("worker.Run",
			fmt.Errorf("in-flight jobs still running after %s", opts.ShutdownTimeout))
	}
}

// runHeartbeat refreshes the queue health key until ctx is cancelled.
func runHeartbeat(ctx context.Context, client queue.Client, queueName string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	beat := func() {
		if err := client.Heartbeat(ctx, queueName); err != nil && ctx.Err() == nil {
			logger.Debug("heartbeat failed", "error", err)
		}
	}

	beat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

type worker struct {
	runner   Runner
	client   queue.Client
	queue    string
	workerID string
	jobCtx   context.Context
}

// loop pops and processes jobs until ctx is cancelled.
func (w *worker) loop(ctx context.Context, logger *slog.Logger) {
	logger.Debug("worker loop started")

	for {
		if ctx.Err() != nil {
			logger.Debug("worker loop stopped")
			return
		}

		job, err := w.client.Pop(ctx, w.queue)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("worker loop stopped")
				return
			}

			var malformed *queue.MalformedJobError
			if errors.As(err, &malformed) {
				w.reject(malformed, logger)
				continue
			}

			logger.Error("failed to pop job", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}

		if job == nil {
			continue
		}

		outcome := w.process(*job, logger.With("job_id", job.JobID))
		if err := w.client.Publish(w.jobCtx, queue.ResultChannel(job.JobID), outcome); err != nil {
			logger.Error("failed to publish outcome", "job_id", job.JobID, "error", err)
		}
	}
}

// process runs one job and always returns an outcome.
func (w *worker) process(job queue.Job, logger *slog.Logger) queue.Outcome {
	startedAt := time.Now().UnixMilli()
	logger.Info("received job", "age_ms", job.Age().Milliseconds())

	result := w.runner.Run(w.jobCtx, job.Artifact)

	outcome := queue.Outcome{
		JobID:       job.JobID,
		RunID:       result.ID,
		Records:     result.Records,
		Decision:    &result.Decision,
		WorkerID:    w.workerID,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UnixMilli(),
	}

	logger.Info("job completed",
		"run_id", result.ID,
		"verdict", result.Decision.Verdict,
		"score", result.Decision.Score,
		"duration_ms", outcome.CompletedAt-outcome.StartedAt,
	)

	return outcome
}

// reject publishes an error outcome for a payload that is not a valid job.
func (w *worker) reject(malformed *queue.MalformedJobError, logger *slog.Logger) {
	if malformed.JobID == "" {
		logger.Error("dropping malformed job without id", "error", malformed.Err)
		return
	}

	now := time.Now().UnixMilli()
	outcome := queue.Outcome{
		JobID:       malformed.JobID,
		Error:       malformed.Error(),
		WorkerID:    w.workerID,
		StartedAt:   now,
		CompletedAt: now,
	}

	logger.Warn("rejecting malformed job", "job_id", malformed.JobID, "error", malformed.Err)
	if err := w.client.Publish(w.jobCtx, queue.ResultChannel(malformed.JobID), outcome); err != nil {
		logger.Error("failed to publish outcome", "job_id", malformed.JobID, "error", err)
	}
}

// generateWorkerID creates a unique identifier for this worker instance.
// Uses hostname + PID + UUID for uniqueness.
func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
}
