// Package worker consumes artifacts from the Redis queue, runs each one
// through the analysis pipeline and publishes the outcome on the job's
// result channel.
//
// # Lifecycle
//
// Run starts Options.Concurrency loops that pop, run and publish until the
// parent context is cancelled. A heartbeat goroutine refreshes the queue's
// health key and the active worker counter is kept in Redis for the
// lifetime of Run. On cancellation the loops stop popping, in-flight jobs
// get up to ShutdownTimeout to finish, and Options.Health is moved to
// NOT_SERVING.
//
// A payload that cannot be decoded as a job still produces an Outcome with
// Error set when a job ID can be recovered from it, so submitters are not
// left waiting.
//
//	analyzers, _ := analyzer.PerRole(client)
//	p, _ := pipeline.New(engine, normalizer, analyzers)
//	err := worker.Run(ctx, p, redisClient, worker.Options{Queue: "default"})
package worker
