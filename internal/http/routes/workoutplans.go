package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/workoutplan/internal/db"
	appmw "github.com/briangreenhill/workoutplan/internal/http/middleware"
	"github.com/briangreenhill/workoutplan/internal/jobs"
	"github.com/briangreenhill/workoutplan/internal/planner"
	"github.com/briangreenhill/workoutplan/internal/workout"
)

const recentPlans = 20

// generateStatus maps a Generate error to the HTTP status reported for it.
func generateStatus(err error) int {
	if errors.Is(err, workout.ErrInvalidProfile) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeProfile(r *http.Request) (workout.Profile, error) {
	var p workout.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return workout.Profile{}, err
	}
	return p, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	userID, _ := appmw.UserID(r.Context())

	profile, err := decodeProfile(r)
	if err != nil {
		appmw.JSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile = profile.Normalize()

	plan, err := s.Planner.Generate(r.Context(), profile)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("generate workout plan")
		appmw.JSONError(w, generateStatus(err), planner.UserMessage(err))
		return
	}

	s.savePlan(r, userID, profile, plan)
	writeJSON(w, http.StatusOK, map[string]any{"trainingPlan": plan})
}

// savePlan records a plan generated inline. Failures are logged only; the
// caller already has the plan.
func (s *Server) savePlan(r *http.Request, userID uuid.UUID, p workout.Profile, plan workout.Plan) {
	profileJSON, err := json.Marshal(p)
	if err != nil {
		return
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return
	}
	if _, err := s.Store.CreateWorkoutPlan(r.Context(), db.CreateWorkoutPlanParams{
		UserID:  userID,
		Profile: profileJSON,
		Plan:    planJSON,
		Status:  db.PlanStatusComplete,
	}); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("save generated plan")
	}
}

func (s *Server) handleCreateWorkoutPlan(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	userID, _ := appmw.UserID(r.Context())

	profile, err := decodeProfile(r)
	if err != nil {
		appmw.JSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		appmw.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.Queue == nil {
		appmw.JSONError(w, http.StatusServiceUnavailable, "background generation is not available")
		return
	}

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		appmw.JSONError(w, http.StatusInternalServerError, "could not store request")
		return
	}
	rec, err := s.Store.CreateWorkoutPlan(r.Context(), db.CreateWorkoutPlanParams{
		UserID:  userID,
		Profile: profileJSON,
		Status:  db.PlanStatusPending,
	})
	if err != nil {
		log.Error().Err(err).Msg("create workout plan")
		appmw.JSONError(w, http.StatusInternalServerError, "could not store request")
		return
	}

	info, err := jobs.EnqueueGeneratePlan(r.Context(), s.Queue, jobs.GeneratePlanPayload{PlanID: rec.ID, UserID: userID}, s.MaxRetry)
	if err != nil {
		log.Error().Err(err).Str("plan_id", rec.ID.String()).Msg("enqueue generation")
		if ferr := s.Store.FailWorkoutPlan(r.Context(), db.FailWorkoutPlanParams{ID: rec.ID, Error: "could not queue generation"}); ferr != nil {
			log.Error().Err(ferr).Msg("mark plan failed")
		}
		appmw.JSONError(w, http.StatusServiceUnavailable, "could not queue generation, please try again")
		return
	}
	log.Info().Str("plan_id", rec.ID.String()).Str("task_id", info.ID).Str("queue", info.Queue).Msg("generation queued")

	w.Header().Set("Location", "/api/workoutplans/"+rec.ID.String())
	writeJSON(w, http.StatusAccepted, map[string]any{"id": rec.ID, "status": rec.Status})
}

type planRecord struct {
	ID           uuid.UUID       `json:"id"`
	Status       string          `json:"status"`
	Profile      json.RawMessage `json:"profile"`
	TrainingPlan json.RawMessage `json:"trainingPlan,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func toRecord(p db.WorkoutPlan) planRecord {
	rec := planRecord{
		ID:        p.ID,
		Status:    p.Status,
		Profile:   json.RawMessage(p.Profile),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if len(p.Plan) > 0 {
		rec.TrainingPlan = json.RawMessage(p.Plan)
	}
	if p.Error.Valid {
		rec.Error = p.Error.String
	}
	return rec
}

func (s *Server) handleGetWorkoutPlan(w http.ResponseWriter, r *http.Request) {
	userID, _ := appmw.UserID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		appmw.JSONError(w, http.StatusNotFound, "workout plan not found")
		return
	}

	p, err := s.Store.GetWorkoutPlan(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && p.UserID != userID) {
		appmw.JSONError(w, http.StatusNotFound, "workout plan not found")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("get workout plan")
		appmw.JSONError(w, http.StatusInternalServerError, "could not load workout plan")
		return
	}
	writeJSON(w, http.StatusOK, toRecord(p))
}

func (s *Server) handleListWorkoutPlans(w http.ResponseWriter, r *http.Request) {
	userID, _ := appmw.UserID(r.Context())
	plans, err := s.Store.ListWorkoutPlansByUser(r.Context(), db.ListWorkoutPlansByUserParams{UserID: userID, Limit: recentPlans})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list workout plans")
		appmw.JSONError(w, http.StatusInternalServerError, "could not load workout plans")
		return
	}
	out := make([]planRecord, 0, len(plans))
	for _, p := range plans {
		out = append(out, toRecord(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"workoutPlans": out})
}

func (s *Server) workoutPlanPage(r *http.Request, p workout.Profile, days []workout.Day, errMsg string) map[string]any {
	return s.page(r, "Workout Plan", map[string]any{
		"Goals":   workout.Goals,
		"Levels":  workout.Levels,
		"Profile": p,
		"Days":    days,
		"Error":   errMsg,
	})
}

func (s *Server) handleWorkoutPlanPage(w http.ResponseWriter, r *http.Request) {
	defaults := workout.Profile{Level: "beginner", AvailableDays: 3}
	s.render(w, r, "workoutplan", s.workoutPlanPage(r, defaults, nil, ""))
}

// profileFromForm reads the plan form; equipment is comma separated.
func profileFromForm(r *http.Request) workout.Profile {
	days, _ := strconv.Atoi(strings.TrimSpace(r.Form.Get("availableDays")))
	var equipment []string
	for _, e := range strings.Split(r.Form.Get("equipment"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			equipment = append(equipment, e)
		}
	}
	return workout.Profile{
		Goal:          r.Form.Get("goal"),
		Level:         r.Form.Get("level"),
		AvailableDays: days,
		Equipment:     equipment,
	}.Normalize()
}

func (s *Server) handleWorkoutPlanForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	userID, _ := appmw.UserID(r.Context())
	profile := profileFromForm(r)

	plan, err := s.Planner.Generate(r.Context(), profile)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("user_id", userID.String()).Msg("generate workout plan")
		s.renderStatus(w, r, generateStatus(err), "workoutplan", s.workoutPlanPage(r, profile, nil, planner.UserMessage(err)))
		return
	}

	s.savePlan(r, userID, profile, plan)
	s.render(w, r, "workoutplan", s.workoutPlanPage(r, profile, plan.Days(profile.AvailableDays), ""))
}
