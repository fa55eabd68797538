package workout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const sampleDay = `{
  "Day 1": {
    "WarmUp": "5-10 minute dynamic warm-up:\n- Jump rope: 2 minutes",
    "MainExercise": "Upper Body Focus:\n- Push-ups: 3 sets of 12 reps",
    "AccessoryExercise": "Accessory Work:\n- Bicep Curls: 2 sets of 12 reps",
    "Cardio": "Optional Cardio:\n- 15-minute brisk walk"
  }
}`

func TestParsePlan(t *testing.T) {
	want := Plan{
		"Day 1": {
			WarmUp:            "5-10 minute dynamic warm-up:\n- Jump rope: 2 minutes",
			MainExercise:      "Upper Body Focus:\n- Push-ups: 3 sets of 12 reps",
			AccessoryExercise: "Accessory Work:\n- Bicep Curls: 2 sets of 12 reps",
			Cardio:            "Optional Cardio:\n- 15-minute brisk walk",
		},
	}

	inputs := map[string]string{
		"bare":          sampleDay,
		"padded":        "\n\n  " + sampleDay + "  \n",
		"json fence":    "```json\n" + sampleDay + "\n```",
		"plain fence":   "```\n" + sampleDay + "\n```",
		"leading prose": "Here is your plan:\n" + sampleDay + "\nEnjoy!",
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := ParsePlan(in)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("ParsePlan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePlanPartialSections(t *testing.T) {
	got, err := ParsePlan(`{"Day 2": {"Cardio": "Row 20 minutes"}, "Day 1": {}}`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got["Day 1"].Empty())
	require.Equal(t, "Row 20 minutes", got["Day 2"].Cardio)
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "   ", ErrMalformedResponse},
		{"prose", "I cannot help with that.", ErrMalformedResponse},
		{"truncated", `{"Day 1": {"WarmUp": "jog`, ErrMalformedResponse},
		{"braces in prose only", "Use the {sets}x{reps} notation.", ErrMalformedResponse},
		{"null", "null", ErrNotAnObject},
		{"array", `[{"WarmUp": "jog"}]`, ErrNotAnObject},
		{"string", `"Day 1"`, ErrNotAnObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan(tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParsePlanLenientShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Plan
	}{
		{
			name: "exercise list",
			in:   `{"Day 1": {"WarmUp": "Jog", "MainExercise": ["Squat 3x5", "Bench 3x5"]}}`,
			want: Plan{"Day 1": {WarmUp: "Jog", MainExercise: "Squat 3x5\nBench 3x5"}},
		},
		{
			name: "numeric section",
			in:   `{"Day 1": {"WarmUp": "Jog", "Cardio": 20}}`,
			want: Plan{"Day 1": {WarmUp: "Jog", Cardio: "20"}},
		},
		{
			name: "extra top level key",
			in:   `{"Day 1": {"WarmUp": "Jog"}, "Notes": "hydrate"}`,
			want: Plan{"Day 1": {WarmUp: "Jog"}},
		},
		{
			name: "rest day as string",
			in:   `{"Day 1": "rest", "Day 2": {"Cardio": "Swim"}}`,
			want: Plan{"Day 2": {Cardio: "Swim"}},
		},
		{
			name: "nested section object",
			in:   `{"Day 1": {"MainExercise": {"Squat": "3x5", "Deadlift": ["1x5"]}, "Cardio": null}}`,
			want: Plan{"Day 1": {MainExercise: "Deadlift: 1x5\nSquat: 3x5"}},
		},
		{
			name: "loose keys and labels",
			in:   `{"day 1": {"warm_up": "Skip", "Main Exercises": "Rows", "accessoryExercises": ["Curls"], "CARDIO": true}, "Day2": {}}`,
			want: Plan{
				"Day 1": {WarmUp: "Skip", MainExercise: "Rows", AccessoryExercise: "Curls", Cardio: "true"},
				"Day 2": {},
			},
		},
		{
			name: "braces in surrounding prose",
			in:   "Use the {sets}x{reps} notation.\n" + `{"Day 1": {"WarmUp": "Jog"}}` + "\nGood luck {name}!",
			want: Plan{"Day 1": {WarmUp: "Jog"}},
		},
		{
			name: "empty object before the plan",
			in:   "Format: {}\n" + `{"Day 3": {"Cardio": "Bike"}}`,
			want: Plan{"Day 3": {Cardio: "Bike"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlan(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParsePlan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
