package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/workoutplan/cache"
	"github.com/briangreenhill/workoutplan/internal/planner"
	"github.com/briangreenhill/workoutplan/internal/prompt"
	"github.com/briangreenhill/workoutplan/internal/workout"
	"github.com/briangreenhill/workoutplan/render"
)

func newGenerateCmd(d deps, logger func() zerolog.Logger) *cobra.Command {
	var (
		profile workout.Profile
		format  string
	)
	formats := render.Default()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a weekly workout plan",
		Example: `  workoutplan generate --goal "muscle gain" --level beginner --days 3 --equipment dumbbells,bench
  workoutplan generate --goal endurance --days 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger()

			renderer, ok := formats.Get(format)
			if !ok {
				return fmt.Errorf("unknown format %q, available: %s", format, strings.Join(formats.List(), ", "))
			}

			profile = profile.Normalize()
			if err := profile.Validate(); err != nil {
				return err
			}

			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			if cfg.LLM.APIKey == "" {
				return errors.New("OPEN_ROUTER_API_KEY is required")
			}
			completer, err := d.newCompleter(cfg.LLM)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd, cfg.LLM.Timeout)
			defer cancel()

			c, closeCache, err := cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.Dir, cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = closeCache() }()

			svc := planner.New(prompt.Load(cfg.PromptTemplatePath, log), completer,
				planner.WithCache(c, cfg.Cache.TTL),
				planner.WithLogger(log),
			)
			plan, err := svc.Generate(ctx, profile)
			if err != nil {
				return errors.New(planner.UserMessage(err))
			}

			out, err := renderer.Render(plan, profile.AvailableDays)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&profile.Goal, "goal", "", "fitness goal, e.g. "+strings.Join(workout.Goals, ", "))
	f.StringVar(&profile.Level, "level", "beginner", "experience level: "+strings.Join(workout.Levels, ", "))
	f.IntVar(&profile.AvailableDays, "days", 3, "training days per week (1-7)")
	f.StringSliceVar(&profile.Equipment, "equipment", nil, "available equipment, comma separated")
	f.StringVar(&format, "format", "markdown", "output format: "+strings.Join(formats.List(), ", "))
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}
