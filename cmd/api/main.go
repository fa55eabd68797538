// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/briangreenhill/workoutplan/cache"
	"github.com/briangreenhill/workoutplan/internal/auth"
	"github.com/briangreenhill/workoutplan/internal/billing"
	"github.com/briangreenhill/workoutplan/internal/config"
	"github.com/briangreenhill/workoutplan/internal/db"
	"github.com/briangreenhill/workoutplan/internal/email"
	appmw "github.com/briangreenhill/workoutplan/internal/http/middleware"
	"github.com/briangreenhill/workoutplan/internal/http/routes"
	"github.com/briangreenhill/workoutplan/internal/llm"
	"github.com/briangreenhill/workoutplan/internal/logging"
	"github.com/briangreenhill/workoutplan/internal/planner"
	"github.com/briangreenhill/workoutplan/internal/prompt"
	"github.com/briangreenhill/workoutplan/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info().Msg("schema applied")
	}
	queries := db.New(pool)

	// Sessions
	sess := scs.New()
	sess.Lifetime = 12 * time.Hour
	sess.Cookie.Name = "workoutplan_session"
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode
	sess.Cookie.Secure = cfg.SecureCookies

	tmpl, err := web.Templates()
	if err != nil {
		return err
	}

	// Model + generation
	completer, err := llm.New(cfg.LLM.APIKey,
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithModel(cfg.LLM.Model),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout}),
	)
	if err != nil {
		return err
	}
	planCache, closeCache, err := cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.Dir, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = closeCache() }()
	svc := planner.New(prompt.Load(cfg.PromptTemplatePath, logger), completer,
		planner.WithCache(planCache, cfg.Cache.TTL),
		planner.WithLogger(logger.With().Str("component", "planner").Logger()),
	)

	catalog, err := billing.NewCatalog(billing.PriceIDs{
		Weekly:  cfg.Billing.PriceWeekly,
		Monthly: cfg.Billing.PriceMonthly,
		Yearly:  cfg.Billing.PriceYearly,
	})
	if err != nil {
		return err
	}

	// Identity
	secret := []byte(cfg.SessionSecret)
	var provider *auth.Provider
	if cfg.Identity.Enabled() {
		provider = auth.NewProvider(auth.ProviderConfig{
			ClientID:     cfg.Identity.ClientID,
			ClientSecret: cfg.Identity.ClientSecret,
			AuthURL:      cfg.Identity.AuthURL,
			TokenURL:     cfg.Identity.TokenURL,
			UserInfoURL:  cfg.Identity.UserInfoURL,
			Scopes:       cfg.Identity.Scopes,
			RedirectURL:  cfg.BaseURL + "/auth/callback",
		})
	} else {
		logger.Warn().Msg("identity provider not configured, only magic-link sign-in is available")
	}

	// Mail sender; without SMTP the link is logged
	var sender email.Sender = email.StdoutSender{Log: logger.With().Str("component", "mail").Logger()}
	if cfg.Mail.SMTPAddr != "" {
		sender = email.NewSMTPSender(cfg.Mail.SMTPAddr, cfg.Mail.From)
	}

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()

	s := routes.New(routes.ServerOptions{
		Sess:     sess,
		Tmpl:     tmpl,
		Store:    queries,
		Planner:  svc,
		Catalog:  catalog,
		Magic:    auth.MagicLink{Secret: secret, BaseURL: cfg.BaseURL},
		State:    auth.State{Secret: secret},
		Provider: provider,
		Tokens:   auth.Tokens{Secret: secret, Issuer: "workoutplan", TTL: 30 * 24 * time.Hour},
		Email:    sender,
		Queue:    queue,
		MaxRetry: cfg.Worker.MaxRetry,
		BaseURL:  cfg.BaseURL,
		Log:      logger,
		Limiter:  appmw.NewLimiter(rate.Every(6*time.Second), 5),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// generation waits on the model
		WriteTimeout: cfg.LLM.Timeout + 15*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("model", completer.Model()).Msg("starting api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
