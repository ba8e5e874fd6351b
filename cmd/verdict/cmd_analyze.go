package main

import (
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/verdict/analyzer"
)

var analyzeUsage = `Run the configured analyzers on one message and print the records and the
fused decision.

The body is read from --body-file ("-" for stdin) and the raw header block
from --headers-file:

  verdict analyze --subject="Account locked" --body-file=body.txt \
      --url=http://example.test/login --headers-file=headers.txt`

func newAnalyzeCmd(a *app) *cobra.Command {
	var flags struct {
		subject     string
		bodyFile    string
		urls        []string
		headersFile string
	}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one message with the LLM-backed pipeline",
		Long:  analyzeUsage,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifact := analyzer.Artifact{
				Subject: flags.subject,
				URLs:    flags.urls,
			}

			if flags.bodyFile != "" {
				body, err := readInput(cmd.InOrStdin(), flags.bodyFile)
				if err != nil {
					return err
				}
				artifact.Body = string(body)
			}

			if flags.headersFile != "" {
				headers, err := readInput(cmd.InOrStdin(), flags.headersFile)
				if err != nil {
					return err
				}
				artifact.Headers = string(headers)
			}

			p, err := buildPipeline(a.cfg, a.logger)
			if err != nil {
				return err
			}

			result := p.Run(cmd.Context(), artifact)
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.subject, "subject", "", "Message subject")
	f.StringVar(&flags.bodyFile, "body-file", "", "Path to the message body (- for stdin)")
	f.StringArrayVar(&flags.urls, "url", nil, "URL found in the message (repeatable)")
	f.StringVar(&flags.headersFile, "headers-file", "", "Path to the raw message headers (- for stdin)")

	return cmd
}
