// Package planner turns a trainee profile into a weekly workout plan:
// build prompt, call the model, parse the JSON reply.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/workoutplan/cache"
	"github.com/briangreenhill/workoutplan/internal/llm"
	"github.com/briangreenhill/workoutplan/internal/workout"
)

// PromptBuilder renders the generation request for a profile.
type PromptBuilder interface {
	Build(p workout.Profile) (string, error)
}

// Service generates workout plans.
type Service struct {
	prompts PromptBuilder
	llm     llm.Completer
	cache   cache.Cache
	ttl     time.Duration
	log     zerolog.Logger
}

type Option func(*Service)

// WithCache stores generated plans for ttl. A zero ttl disables caching.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil && ttl > 0 {
			s.cache, s.ttl = c, ttl
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func New(prompts PromptBuilder, completer llm.Completer, opts ...Option) *Service {
	s := &Service{
		prompts: prompts,
		llm:     completer,
		cache:   cache.Noop{},
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Generate builds the prompt for p, asks the model and returns the parsed plan.
// Validation failures wrap workout.ErrInvalidProfile; unparsable replies
// return workout.ErrMalformedResponse or workout.ErrNotAnObject.
func (s *Service) Generate(ctx context.Context, p workout.Profile) (workout.Plan, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	key := CacheKey(p)
	if entry, ok := s.cache.Read(ctx, key); ok {
		var plan workout.Plan
		if err := json.Unmarshal(entry.Body, &plan); err == nil {
			s.log.Debug().Str("key", key).Msg("plan served from cache")
			return plan, nil
		}
	}

	text, err := s.prompts.Build(p)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("goal", p.Goal).Str("level", p.Level).Int("days", p.AvailableDays).Strs("equipment", p.Equipment).Msg("requesting workout plan")

	start := time.Now()
	content, err := s.llm.Complete(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("generate workout plan: %w", err)
	}
	s.log.Debug().Dur("duration", time.Since(start)).Str("response", content).Msg("model responded")

	plan, err := workout.ParsePlan(content)
	if err != nil {
		s.log.Warn().Err(err).Str("response", content).Msg("failed to parse model response")
		return nil, err
	}

	if body, err := json.Marshal(plan); err == nil {
		if err := s.cache.Write(ctx, key, &cache.Entry{Body: body}, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}

	return plan, nil
}

// CacheKey identifies a normalized profile. Equipment order does not matter.
func CacheKey(p workout.Profile) string {
	equipment := make([]string, len(p.Equipment))
	for i, e := range p.Equipment {
		equipment[i] = strings.ToLower(e)
	}
	sort.Strings(equipment)

	return cache.KeyFor("plan", map[string]string{
		"goal":      strings.ToLower(p.Goal),
		"level":     p.Level,
		"days":      strconv.Itoa(p.AvailableDays),
		"equipment": strings.Join(equipment, "\x1f"),
	})
}

// Messages shown to users when the model reply cannot be used.
const (
	MsgMalformedResponse = "Failed to parse AI response"
	MsgNotAnObject       = "Failed to parse workout plan, please try again."
)

// UserMessage is the text reported to the caller for a Generate error.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, workout.ErrMalformedResponse):
		return MsgMalformedResponse
	case errors.Is(err, workout.ErrNotAnObject):
		return MsgNotAnObject
	default:
		return err.Error()
	}
}

// Retryable reports whether trying the same profile again may succeed:
// timeouts, rate limiting, upstream 5xx and unparsable replies.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, workout.ErrInvalidProfile) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, workout.ErrMalformedResponse) ||
		errors.Is(err, workout.ErrNotAnObject) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if code := llm.StatusCode(err); code != 0 {
		return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection", "network", "dns", "rate limit"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
