package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	verdict "github.com/zero-day-ai/verdict"
	"github.com/zero-day-ai/verdict/serve"
	"github.com/zero-day-ai/verdict/worker"
)

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume artifacts from the Redis queue until interrupted",
		Long: `Run the queue worker: pop artifacts, run them through the analyzers, and
publish each outcome on its result channel. A gRPC health service reports
SERVING while jobs are being consumed. SIGINT or SIGTERM starts a graceful
shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, err := buildPipeline(a.cfg, a.logger)
			if err != nil {
				return err
			}

			client, err := connectQueue(a.cfg)
			if err != nil {
				return err
			}
			defer verdict.CloseWithLog(client, a.logger, "redis client")

			srv, err := serve.NewServer(serve.NewConfig(
				serve.WithPort(a.cfg.Worker.GetHealthPort()),
				serve.WithGracefulShutdown(a.cfg.Worker.GetShutdownTimeout()),
				serve.WithLogger(a.logger),
			))
			if err != nil {
				return err
			}

			opts := worker.OptionsFromConfig(a.cfg.Worker)
			opts.Logger = a.logger
			opts.Health = srv

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				err := srv.Serve(gctx)
				if gctx.Err() != nil {
					return nil
				}
				return err
			})
			g.Go(func() error {
				// A health server failure also stops the worker.
				return worker.Run(gctx, p, client, opts)
			})

			return g.Wait()
		},
	}
}
