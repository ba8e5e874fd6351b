package main

import (
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/verdict/record"
)

func newFuseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fuse <content.json> <reference.json> <metadata.json>",
		Short: "Normalize three analyzer outputs and print the fused decision",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			normalizer, err := a.cfg.Normalizer()
			if err != nil {
				return err
			}
			engine, err := a.cfg.Engine()
			if err != nil {
				return err
			}

			roles := record.AllRoles()
			records := make([]record.Record, len(roles))
			for i, role := range roles {
				data, err := readInput(cmd.InOrStdin(), args[i])
				if err != nil {
					return err
				}
				rec, discarded := normalizer.NormalizeChecked(rawOutput(data), role)
				if discarded {
					a.logger.Warn("analyzer output discarded",
						"role", role.String(), "file", args[i], "rationale", rec.Rationale)
				}
				records[i] = rec
			}

			decision := engine.Fuse(records[0], records[1], records[2])
			a.logger.Debug("artifact fused", "verdict", decision.Verdict, "score", decision.Score, "rule", decision.Rule.String())
			return writeJSON(cmd.OutOrStdout(), decision)
		},
	}
}
