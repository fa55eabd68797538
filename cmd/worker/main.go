package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/workoutplan/cache"
	"github.com/briangreenhill/workoutplan/internal/config"
	"github.com/briangreenhill/workoutplan/internal/db"
	"github.com/briangreenhill/workoutplan/internal/jobs"
	"github.com/briangreenhill/workoutplan/internal/llm"
	"github.com/briangreenhill/workoutplan/internal/logging"
	"github.com/briangreenhill/workoutplan/internal/planner"
	"github.com/briangreenhill/workoutplan/internal/prompt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With().Str("component", "worker").Logger()
	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	completer, err := llm.New(cfg.LLM.APIKey,
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithModel(cfg.LLM.Model),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("model client")
	}
	planCache, closeCache, err := cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.Dir, cfg.RedisAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("open cache")
	}
	defer func() { _ = closeCache() }()

	svc := planner.New(prompt.Load(cfg.PromptTemplatePath, logger), completer,
		planner.WithCache(planCache, cfg.Cache.TTL),
		planner.WithLogger(logger),
	)
	handler := jobs.NewHandler(db.New(pool), svc, logger)

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			jobs.QueuePlans: 10,
			"default":       1,
		},
		// model rate limits reset within a minute or two
		RetryDelayFunc: func(n int, err error, t *asynq.Task) time.Duration {
			return time.Duration(15*(n+1)) * time.Second
		},
		ShutdownTimeout: 30 * time.Second,
	})
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskGeneratePlan, handler)

	logger.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}
