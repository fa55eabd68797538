// Package jobs runs workout plan generation in the background on asynq.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/workoutplan/internal/db"
	"github.com/briangreenhill/workoutplan/internal/planner"
	"github.com/briangreenhill/workoutplan/internal/workout"
)

const (
	TaskGeneratePlan = "plan:generate"
	QueuePlans       = "plans"

	generateTimeout = 5 * time.Minute
)

type GeneratePlanPayload struct {
	PlanID uuid.UUID `json:"plan_id"`
	UserID uuid.UUID `json:"user_id"`
}

// Enqueuer is the part of *asynq.Client the API uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewGeneratePlanTask(p GeneratePlanPayload, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TaskGeneratePlan, payload,
		asynq.Queue(QueuePlans),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(generateTimeout),
	), nil
}

// EnqueueGeneratePlan queues generation of a stored pending plan.
func EnqueueGeneratePlan(ctx context.Context, q Enqueuer, p GeneratePlanPayload, maxRetry int) (*asynq.TaskInfo, error) {
	task, err := NewGeneratePlanTask(p, maxRetry)
	if err != nil {
		return nil, err
	}
	info, err := q.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", TaskGeneratePlan, err)
	}
	return info, nil
}

// Store is the persistence the handler needs; *db.Queries satisfies it.
type Store interface {
	GetWorkoutPlan(ctx context.Context, id uuid.UUID) (db.WorkoutPlan, error)
	CompleteWorkoutPlan(ctx context.Context, arg db.CompleteWorkoutPlanParams) error
	FailWorkoutPlan(ctx context.Context, arg db.FailWorkoutPlanParams) error
}

type Generator interface {
	Generate(ctx context.Context, p workout.Profile) (workout.Plan, error)
}

// Handler processes plan:generate tasks.
type Handler struct {
	Store   Store
	Planner Generator
	Log     zerolog.Logger

	lastAttempt func(context.Context) bool
}

func NewHandler(store Store, gen Generator, log zerolog.Logger) *Handler {
	return &Handler{Store: store, Planner: gen, Log: log, lastAttempt: asynqLastAttempt}
}

func asynqLastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retried >= maxRetry
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p GeneratePlanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.Log.Error().Err(err).Msg("bad payload")
		return fmt.Errorf("bad payload: %v: %w", err, asynq.SkipRetry)
	}
	log := h.Log.With().Str("plan_id", p.PlanID.String()).Logger()

	rec, err := h.Store.GetWorkoutPlan(ctx, p.PlanID)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Warn().Msg("plan no longer exists, dropping task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	if rec.UserID != p.UserID {
		log.Error().Str("user_id", p.UserID.String()).Msg("plan belongs to another user, dropping task")
		return nil
	}
	if rec.Status != db.PlanStatusPending {
		log.Info().Str("status", rec.Status).Msg("plan already settled")
		return nil
	}

	var profile workout.Profile
	if err := json.Unmarshal(rec.Profile, &profile); err != nil {
		return h.fail(ctx, log, p.PlanID, fmt.Errorf("%w: stored profile unreadable", workout.ErrInvalidProfile))
	}

	log.Info().Msg("generating plan")
	start := time.Now()
	plan, err := h.Planner.Generate(ctx, profile)
	duration := time.Since(start)
	if err != nil {
		if planner.Retryable(err) && !h.isLastAttempt(ctx) {
			log.Warn().Err(err).Dur("duration", duration).Msg("retryable error")
			return err
		}
		log.Error().Err(err).Dur("duration", duration).Msg("permanent error, marking plan failed")
		return h.fail(ctx, log, p.PlanID, err)
	}

	body, err := json.Marshal(plan)
	if err != nil {
		return h.fail(ctx, log, p.PlanID, err)
	}
	if err := h.Store.CompleteWorkoutPlan(ctx, db.CompleteWorkoutPlanParams{ID: p.PlanID, Plan: body}); err != nil {
		return fmt.Errorf("store plan: %w", err)
	}
	log.Info().Dur("duration", duration).Int("days", len(plan)).Msg("plan generated")
	return nil
}

func (h *Handler) isLastAttempt(ctx context.Context) bool {
	if h.lastAttempt == nil {
		return asynqLastAttempt(ctx)
	}
	return h.lastAttempt(ctx)
}

// fail records the failure on the plan; the task itself is done.
func (h *Handler) fail(ctx context.Context, log zerolog.Logger, id uuid.UUID, cause error) error {
	if err := h.Store.FailWorkoutPlan(ctx, db.FailWorkoutPlanParams{ID: id, Error: planner.UserMessage(cause)}); err != nil {
		log.Error().Err(err).Msg("could not mark plan failed")
		return fmt.Errorf("mark plan failed: %w", err)
	}
	return nil
}
