package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	verdict "github.com/zero-day-ai/verdict"
	"github.com/zero-day-ai/verdict/analyzer"
	"github.com/zero-day-ai/verdict/queue"
)

func newSubmitCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "submit [artifact.json|-]",
		Short: "Queue an artifact for a worker and print the outcome",
		Long: `Push an artifact to the configured queue and wait for a worker to publish
its outcome. The artifact is a JSON object with subject, body, urls and
headers fields.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) > 0 {
				path = args[0]
			}
			data, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			var artifact analyzer.Artifact
			if err := json.Unmarshal(data, &artifact); err != nil {
				return fmt.Errorf("parse artifact: %w", err)
			}

			client, err := connectQueue(a.cfg)
			if err != nil {
				return err
			}
			defer verdict.CloseWithLog(client, a.logger, "redis client")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			outcome, err := queue.Submit(ctx, client, a.cfg.Worker.GetQueue(), artifact)
			if err != nil {
				return err
			}

			if err := writeJSON(cmd.OutOrStdout(), outcome); err != nil {
				return err
			}
			if outcome.HasError() {
				return fmt.Errorf("job %s failed: %s", outcome.JobID, outcome.Error)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum time to wait for the outcome")

	return cmd
}
