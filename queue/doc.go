// Package queue provides the Redis work queue that feeds artifacts to
// verdict workers and carries their outcomes back.
//
// # Redis Key Schema
//
//   - verdict:<name>:queue   - List of jobs (LPUSH/BRPOP)
//   - verdict:<name>:health  - String with 30s TTL refreshed by worker heartbeats
//   - verdict:<name>:workers - Integer counter of active workers
//   - verdict:results:<jobID> - Pub/Sub channel carrying the job's outcome
//
// # Usage
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{URL: "redis://localhost:6379"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	outcome, err := queue.Submit(ctx, client, "default", artifact)
//
// Submit subscribes to the job's result channel before pushing, so an
// outcome published by a fast worker is never missed.
package queue
