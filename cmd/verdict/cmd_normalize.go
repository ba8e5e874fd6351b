package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/verdict/record"
)

func newNormalizeCmd(a *app) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "normalize [file|-]",
		Short: "Normalize one analyzer output into a canonical record",
		Long: `Read raw analyzer output (JSON, optionally surrounded by text) and print the
canonical record for the given role. Output that cannot be used becomes the
unsure/0.0 safe default with the reason in its rationale.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := record.ParseRole(role)
			if err != nil {
				return fmt.Errorf("--role: %w", err)
			}

			path := "-"
			if len(args) > 0 {
				path = args[0]
			}
			data, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			normalizer, err := a.cfg.Normalizer()
			if err != nil {
				return err
			}

			rec, discarded := normalizer.NormalizeChecked(rawOutput(data), r)
			if discarded {
				a.logger.Warn("analyzer output discarded", "role", r.String(), "rationale", rec.Rationale)
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Analyzer role: content, reference or metadata")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}
