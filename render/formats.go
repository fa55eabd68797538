package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/briangreenhill/workoutplan/internal/workout"
)

const noWorkout = "No workout planned for this day."

type section struct {
	title string
	body  string
}

func sections(w workout.DailyWorkout) []section {
	all := []section{
		{"Warm Up", w.WarmUp},
		{"Main Exercises", w.MainExercise},
		{"Accessory Exercises", w.AccessoryExercise},
		{"Cardio", w.Cardio},
	}
	out := all[:0]
	for _, s := range all {
		if strings.TrimSpace(s.body) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Markdown renders one heading per day with a sub-heading per section.
type Markdown struct{}

func (Markdown) Name() string { return "markdown" }

func (Markdown) Render(plan workout.Plan, days int) (string, error) {
	blocks := []string{"# Weekly Workout Plan"}
	for _, d := range plan.Days(days) {
		blocks = append(blocks, "## "+d.Label)
		if d.Workout == nil {
			blocks = append(blocks, "_"+noWorkout+"_")
			continue
		}
		for _, s := range sections(*d.Workout) {
			blocks = append(blocks, "### "+s.title, strings.TrimSpace(s.body))
		}
	}
	return strings.Join(blocks, "\n\n") + "\n", nil
}

// Text renders a plain listing for narrow terminals.
type Text struct{}

func (Text) Name() string { return "text" }

func (Text) Render(plan workout.Plan, days int) (string, error) {
	var b strings.Builder
	for i, d := range plan.Days(days) {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(d.Label + "\n")
		b.WriteString(strings.Repeat("-", len(d.Label)) + "\n")
		if d.Workout == nil {
			b.WriteString(noWorkout + "\n")
			continue
		}
		for _, s := range sections(*d.Workout) {
			fmt.Fprintf(&b, "%s:\n", s.title)
			for _, line := range strings.Split(strings.TrimSpace(s.body), "\n") {
				b.WriteString("  " + line + "\n")
			}
		}
	}
	return b.String(), nil
}

// JSON renders the same {"trainingPlan": ...} shape the API returns, limited
// to the requested days.
type JSON struct {
	Indent string
}

func (JSON) Name() string { return "json" }

func (j JSON) Render(plan workout.Plan, days int) (string, error) {
	subset := workout.Plan{}
	for _, d := range plan.Days(days) {
		if d.Workout != nil {
			subset[d.Label] = *d.Workout
		}
	}
	b, err := json.MarshalIndent(map[string]workout.Plan{"trainingPlan": subset}, "", j.Indent)
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	return string(b) + "\n", nil
}
