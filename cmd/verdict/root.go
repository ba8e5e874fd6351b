package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/verdict/config"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "verdict",
		Short: "Fuse per-view phishing verdicts into one decision",
		Long: "verdict normalizes the output of content, reference and metadata analyzers\n" +
			"into canonical records and fuses them with a hard-indicator override and a\n" +
			"weighted consensus.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Path to verdict.yaml or a directory containing it (default: ./verdict.yaml if present)")
	f.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	f.StringVar(&a.logFormat, "log-format", "", "Log format: json, text (overrides config)")

	root.AddCommand(newNormalizeCmd(a))
	root.AddCommand(newFuseCmd(a))
	root.AddCommand(newAnalyzeCmd(a))
	root.AddCommand(newWorkerCmd(a))
	root.AddCommand(newSubmitCmd(a))
	root.Version = version

	return root
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.Logging.NewLogger(cmd.ErrOrStderr())
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	for _, name := range config.FileNames {
		if _, err := os.Stat(name); err == nil {
			cfg, err := config.Load(name)
			if err != nil {
				return nil, fmt.Errorf("load config: %w", err)
			}
			return cfg, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("check config %s: %w", name, err)
		}
	}
	return config.Default(), nil
}
