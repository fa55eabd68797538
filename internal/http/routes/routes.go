package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/workoutplan/internal/auth"
	"github.com/briangreenhill/workoutplan/internal/billing"
	"github.com/briangreenhill/workoutplan/internal/db"
	"github.com/briangreenhill/workoutplan/internal/email"
	appmw "github.com/briangreenhill/workoutplan/internal/http/middleware"
	"github.com/briangreenhill/workoutplan/internal/jobs"
	"github.com/briangreenhill/workoutplan/internal/workout"
)

const (
	sessionUserKey = "user_id"
	maxBodyBytes   = 1 << 20
)

// Store is the persistence the handlers need; *db.Queries satisfies it.
type Store interface {
	UpsertUserByEmail(ctx context.Context, arg db.UpsertUserByEmailParams) (db.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (db.User, error)
	CreateWorkoutPlan(ctx context.Context, arg db.CreateWorkoutPlanParams) (db.WorkoutPlan, error)
	GetWorkoutPlan(ctx context.Context, id uuid.UUID) (db.WorkoutPlan, error)
	ListWorkoutPlansByUser(ctx context.Context, arg db.ListWorkoutPlansByUserParams) ([]db.WorkoutPlan, error)
	FailWorkoutPlan(ctx context.Context, arg db.FailWorkoutPlanParams) error
	UpsertSubscription(ctx context.Context, arg db.UpsertSubscriptionParams) (db.Subscription, error)
	GetSubscriptionByUser(ctx context.Context, userID uuid.UUID) (db.Subscription, error)
}

// Planner generates workout plans.
type Planner interface {
	Generate(ctx context.Context, p workout.Profile) (workout.Plan, error)
}

type Server struct {
	Router   *chi.Mux
	Sess     *scs.SessionManager
	Tmpl     *template.Template
	Store    Store
	Planner  Planner
	Catalog  *billing.Catalog
	Magic    auth.MagicLink
	State    auth.State
	Provider *auth.Provider // nil when no identity provider is configured
	Tokens   auth.Tokens
	Email    email.Sender
	Queue    jobs.Enqueuer // nil disables background generation
	MaxRetry int
	BaseURL  string
	Log      zerolog.Logger
}

type ServerOptions struct {
	Sess     *scs.SessionManager
	Tmpl     *template.Template
	Store    Store
	Planner  Planner
	Catalog  *billing.Catalog
	Magic    auth.MagicLink
	State    auth.State
	Provider *auth.Provider
	Tokens   auth.Tokens
	Email    email.Sender
	Queue    jobs.Enqueuer
	MaxRetry int
	BaseURL  string
	Log      zerolog.Logger
	// Limiter throttles queued generation; nil means unlimited.
	Limiter *appmw.Limiter
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestSize(maxBodyBytes))

	s := &Server{
		Router:   r,
		Sess:     opts.Sess,
		Tmpl:     opts.Tmpl,
		Store:    opts.Store,
		Planner:  opts.Planner,
		Catalog:  opts.Catalog,
		Magic:    opts.Magic,
		State:    opts.State,
		Provider: opts.Provider,
		Tokens:   opts.Tokens,
		Email:    opts.Email,
		Queue:    opts.Queue,
		MaxRetry: opts.MaxRetry,
		BaseURL:  opts.BaseURL,
		Log:      opts.Log,
	}
	r.Use(s.identify)

	limit := func(next http.Handler) http.Handler { return next }
	if opts.Limiter != nil {
		limit = opts.Limiter.Handler
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})

	r.Get("/", s.handleHome)
	r.Get("/sign-in", s.handleSignIn)
	r.Post("/auth/magic-link", s.handleMagicLink)
	r.Get("/auth/verify", s.handleVerify)
	r.Get("/auth/start", s.handleAuthStart)
	r.Get("/auth/callback", s.handleAuthCallback)
	r.Post("/sign-out", s.handleSignOut)
	r.Get("/api/plans", s.handlePlans)
	r.Get("/subscribe", s.handleSubscribePage)

	r.Group(func(pr chi.Router) {
		pr.Use(appmw.RequireUser)

		pr.Post("/api/generate-workoutplan", s.handleGenerate)
		pr.With(limit).Post("/api/workoutplans", s.handleCreateWorkoutPlan)
		pr.Get("/api/workoutplans", s.handleListWorkoutPlans)
		pr.Get("/api/workoutplans/{planID}", s.handleGetWorkoutPlan)
		pr.Get("/workoutplan", s.handleWorkoutPlanPage)
		pr.Post("/workoutplan", s.handleWorkoutPlanForm)
		pr.Post("/api/subscribe", s.handleSubscribe)
		pr.Post("/subscribe", s.handleSubscribeForm)
		pr.Post("/api/token", s.handleIssueToken)
		pr.Get("/profile", s.handleProfile)
	})

	return s
}

// Handler is the router wrapped with session loading.
func (s *Server) Handler() http.Handler {
	return s.Sess.LoadAndSave(s.Router)
}

// identify puts the caller on the request context, from a bearer token when
// one is sent and from the session otherwise.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			tok, ok := strings.CutPrefix(h, "Bearer ")
			if !ok {
				appmw.JSONError(w, http.StatusUnauthorized, "unsupported authorization scheme")
				return
			}
			id, err := s.Tokens.Parse(strings.TrimSpace(tok))
			if err != nil {
				hlog.FromRequest(r).Info().Err(err).Msg("rejected bearer token")
				appmw.JSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(appmw.WithUserID(r.Context(), id)))
			return
		}

		if raw := s.Sess.GetString(r.Context(), sessionUserKey); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(appmw.WithUserID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// currentUser loads the signed-in user for page rendering; nil when anonymous.
func (s *Server) currentUser(r *http.Request) *db.User {
	id, ok := appmw.UserID(r.Context())
	if !ok {
		return nil
	}
	u, err := s.Store.GetUser(r.Context(), id)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("user_id", id.String()).Msg("load current user")
		return nil
	}
	return &u
}

func (s *Server) page(r *http.Request, title string, data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	data["Title"] = title
	if _, ok := data["User"]; !ok {
		if u := s.currentUser(r); u != nil {
			data["User"] = u
		}
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.Tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("template", name).Msg("render template failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "home", s.page(r, "AI Workout Plans", nil))
}
