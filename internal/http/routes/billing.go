package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/workoutplan/internal/billing"
	"github.com/briangreenhill/workoutplan/internal/db"
	appmw "github.com/briangreenhill/workoutplan/internal/http/middleware"
)

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": s.Catalog.Plans()})
}

// subscription returns the user's chosen plan, or nil.
func (s *Server) subscription(r *http.Request, userID uuid.UUID) *db.Subscription {
	sub, err := s.Store.GetSubscriptionByUser(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			hlog.FromRequest(r).Warn().Err(err).Msg("load subscription")
		}
		return nil
	}
	return &sub
}

func (s *Server) subscribePage(r *http.Request, errMsg string) map[string]any {
	data := map[string]any{"Plans": s.Catalog.Plans(), "Error": errMsg}
	if id, ok := appmw.UserID(r.Context()); ok {
		if sub := s.subscription(r, id); sub != nil {
			data["Chosen"] = sub
		}
	}
	return s.page(r, "Subscribe", data)
}

func (s *Server) handleSubscribePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "subscribe", s.subscribePage(r, ""))
}

// choosePlan records the plan the user picked and returns its price ID.
func (s *Server) choosePlan(r *http.Request, planType string) (db.Subscription, error) {
	userID, _ := appmw.UserID(r.Context())
	planType = strings.ToLower(strings.TrimSpace(planType))
	priceID, err := s.Catalog.PriceIDFor(planType)
	if err != nil {
		return db.Subscription{}, err
	}
	return s.Store.UpsertSubscription(r.Context(), db.UpsertSubscriptionParams{
		UserID:   userID,
		PlanType: planType,
		PriceID:  priceID,
	})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlanType string `json:"planType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		appmw.JSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := s.choosePlan(r, body.PlanType)
	if errors.Is(err, billing.ErrUnknownPlan) {
		appmw.JSONError(w, http.StatusBadRequest, "Invalid plan type")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("store subscription")
		appmw.JSONError(w, http.StatusInternalServerError, "could not save subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"planType": sub.PlanType,
		"priceId":  sub.PriceID,
		"status":   sub.Status,
	})
}

func (s *Server) handleSubscribeForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	_, err := s.choosePlan(r, r.Form.Get("planType"))
	if errors.Is(err, billing.ErrUnknownPlan) {
		s.renderStatus(w, r, http.StatusBadRequest, "subscribe", s.subscribePage(r, "That plan is not available."))
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("store subscription")
		s.renderStatus(w, r, http.StatusInternalServerError, "subscribe", s.subscribePage(r, "Could not save your choice, please try again."))
		return
	}
	http.Redirect(w, r, "/subscribe", http.StatusSeeOther)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u := s.currentUser(r)
	if u == nil {
		// the session points at a user that no longer exists
		_ = s.Sess.Destroy(r.Context())
		http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
		return
	}
	plans, err := s.Store.ListWorkoutPlansByUser(r.Context(), db.ListWorkoutPlansByUserParams{UserID: u.ID, Limit: 10})
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("list workout plans")
	}
	s.render(w, r, "profile", s.page(r, "Profile", map[string]any{
		"User":         u,
		"Subscription": s.subscription(r, u.ID),
		"Plans":        plans,
	}))
}
