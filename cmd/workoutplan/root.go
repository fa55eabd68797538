package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/workoutplan/internal/config"
	"github.com/briangreenhill/workoutplan/internal/llm"
)

var version = "v0.1.0"

// deps are the pieces tests replace.
type deps struct {
	loadConfig   func() (config.Config, error)
	newCompleter func(cfg config.LLMConfig) (llm.Completer, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.Load,
		newCompleter: func(cfg config.LLMConfig) (llm.Completer, error) {
			return llm.New(cfg.APIKey,
				llm.WithBaseURL(cfg.BaseURL),
				llm.WithModel(cfg.Model),
				llm.WithTemperature(cfg.Temperature),
				llm.WithMaxTokens(cfg.MaxTokens),
			)
		},
	}
}

func newRootCmd(d deps) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "workoutplan",
		Short:         "Generate personalized weekly workout plans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log prompts and model output")

	logger := func() zerolog.Logger {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	}

	root.AddCommand(
		newGenerateCmd(d, logger),
		newPlansCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "workoutplan %s\n", version)
			},
		},
	)
	return root
}

func withTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
