package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// HeartbeatTTL is how long a worker heartbeat keeps the health key alive.
	HeartbeatTTL = 30 * time.Second

	// PollInterval bounds a single BRPOP so a blocked Pop notices
	// cancellation.
	PollInterval = time.Second
)

// Client defines the interface for interacting with the Redis work queue.
type Client interface {
	// Push adds a job to the end of a queue (LPUSH).
	Push(ctx context.Context, queue string, job Job) error

	// Pop removes and returns a job from the front of a queue (BRPOP).
	// Blocks for at most PollInterval and returns nil, nil when no job
	// arrived. A payload that is not a valid job yields a *MalformedJobError.
	Pop(ctx context.Context, queue string) (*Job, error)

	// Publish sends an outcome to a pub/sub channel.
	Publish(ctx context.Context, channel string, outcome Outcome) error

	// Subscribe creates a subscription to a pub/sub channel.
	// Returns a channel that receives outcomes until ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan Outcome, error)

	// Heartbeat refreshes the health key of a queue with HeartbeatTTL.
	Heartbeat(ctx context.Context, queue string) error

	// GetWorkerCount returns the current worker count for a queue.
	GetWorkerCount(ctx context.Context, queue string) (int, error)

	// IncrementWorkerCount increments the worker count for a queue.
	IncrementWorkerCount(ctx context.Context, queue string) error

	// DecrementWorkerCount decrements the worker count for a queue.
	DecrementWorkerCount(ctx context.Context, queue string) error

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisClient implements the Client interface using go-redis/v9.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis queue client and verifies the
// connection with a PING.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if opts.TLS != nil {
		redisOpts.TLSConfig = opts.TLS
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Push adds a job to the end of a queue.
func (c *RedisClient) Push(ctx context.Context, queue string, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := c.client.LPush(ctx, QueueKey(queue), data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", queue, err)
	}

	return nil
}

// Pop removes and returns a job from the front of a queue.
func (c *RedisClient) Pop(ctx context.Context, queue string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// BRPOP returns [key, value], or redis.Nil on timeout
	result, err := c.client.BRPop(ctx, PollInterval, QueueKey(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", queue, err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	return decodeJob(result[1])
}

// decodeJob parses a queue payload. On failure the job ID is recovered from
// the payload when possible.
func decodeJob(payload string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, &MalformedJobError{
			JobID:   lenientJobID(payload),
			Payload: payload,
			Err:     fmt.Errorf("failed to unmarshal job: %w", err),
		}
	}
	if err := job.IsValid(); err != nil {
		return nil, &MalformedJobError{JobID: job.JobID, Payload: payload, Err: err}
	}
	return &job, nil
}

func lenientJobID(payload string) string {
	var head struct {
		JobID any `json:"job_id"`
	}
	if err := json.Unmarshal([]byte(payload), &head); err != nil {
		return ""
	}
	if id, ok := head.JobID.(string); ok {
		return id
	}
	return ""
}

// Publish sends an outcome to a pub/sub channel.
func (c *RedisClient) Publish(ctx context.Context, channel string, outcome Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}

	return nil
}

// Subscribe creates a subscription to a pub/sub channel. The subscription
// is confirmed before Subscribe returns.
func (c *RedisClient) Subscribe(ctx context.Context, channel string) (<-chan Outcome, error) {
	pubsub := c.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	out := make(chan Outcome)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var outcome Outcome
				if err := json.Unmarshal([]byte(msg.Payload), &outcome); err != nil {
					continue
				}

				select {
				case out <- outcome:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Heartbeat refreshes the health key of a queue.
func (c *RedisClient) Heartbeat(ctx context.Context, queue string) error {
	if err := c.client.Set(ctx, HealthKey(queue), "ok", HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat for queue %s: %w", queue, err)
	}
	return nil
}

// GetWorkerCount returns the current worker count for a queue.
func (c *RedisClient) GetWorkerCount(ctx context.Context, queue string) (int, error) {
	countStr, err := c.client.Get(ctx, WorkersKey(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get worker count for queue %s: %w", queue, err)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return 0, fmt.Errorf("invalid worker count value: %w", err)
	}

	return count, nil
}

// IncrementWorkerCount increments the worker count for a queue.
func (c *RedisClient) IncrementWorkerCount(ctx context.Context, queue string) error {
	if err := c.client.Incr(ctx, WorkersKey(queue)).Err(); err != nil {
		return fmt.Errorf("failed to increment worker count for queue %s: %w", queue, err)
	}
	return nil
}

// DecrementWorkerCount decrements the worker count for a queue.
func (c *RedisClient) DecrementWorkerCount(ctx context.Context, queue string) error {
	if err := c.client.Decr(ctx, WorkersKey(queue)).Err(); err != nil {
		return fmt.Errorf("failed to decrement worker count for queue %s: %w", queue, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
