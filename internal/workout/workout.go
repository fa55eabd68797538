// Package workout holds the workout plan domain types: the trainee profile a
// plan is generated for and the weekly plan parsed from the model output.
package workout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MaxDays is the number of day slots in a weekly plan.
const MaxDays = 7

// Levels accepted by Validate.
var Levels = []string{"beginner", "intermediate", "advanced"}

// Goals offered by the plan form. Free-form goals are accepted as well.
var Goals = []string{"muscle gain", "fat loss", "endurance", "general fitness", "strength"}

// ErrInvalidProfile is wrapped by every Validate failure.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile describes the trainee a plan is generated for.
type Profile struct {
	Goal          string   `json:"goal"`
	Level         string   `json:"level"`
	AvailableDays int      `json:"availableDays"`
	Equipment     []string `json:"equipment"`
}

// UnmarshalJSON accepts any JSON value for equipment; anything that is not an
// array of strings is treated as no equipment. availableDays may be sent as a
// number or a numeric string.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw struct {
		Goal          string          `json:"goal"`
		Level         string          `json:"level"`
		AvailableDays dayCount        `json:"availableDays"`
		Equipment     json.RawMessage `json:"equipment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var equipment []string
	if len(raw.Equipment) > 0 {
		if err := json.Unmarshal(raw.Equipment, &equipment); err != nil {
			equipment = nil
		}
	}

	*p = Profile{
		Goal:          raw.Goal,
		Level:         raw.Level,
		AvailableDays: int(raw.AvailableDays),
		Equipment:     equipment,
	}
	return nil
}

// dayCount decodes 3, 3.0 and "3" alike. Range checks are left to Validate.
type dayCount int

func (d *dayCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*d = 0
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	if n, err := strconv.Atoi(s); err == nil {
		*d = dayCount(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("availableDays: %q is not a whole number", s)
	}
	*d = dayCount(f)
	return nil
}

// Normalize trims the text fields, lower-cases the level and drops empty or
// duplicate equipment entries, keeping the first occurrence.
func (p Profile) Normalize() Profile {
	out := Profile{
		Goal:          strings.TrimSpace(p.Goal),
		Level:         strings.ToLower(strings.TrimSpace(p.Level)),
		AvailableDays: p.AvailableDays,
	}

	seen := make(map[string]bool, len(p.Equipment))
	for _, item := range p.Equipment {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out.Equipment = append(out.Equipment, item)
	}
	return out
}

// Validate reports whether the profile can be turned into a prompt.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Goal) == "" {
		return fmt.Errorf("%w: goal is required", ErrInvalidProfile)
	}
	if !isLevel(p.Level) {
		return fmt.Errorf("%w: level must be one of %s", ErrInvalidProfile, strings.Join(Levels, ", "))
	}
	if p.AvailableDays < 1 || p.AvailableDays > MaxDays {
		return fmt.Errorf("%w: availableDays must be between 1 and %d, got %d", ErrInvalidProfile, MaxDays, p.AvailableDays)
	}
	return nil
}

func isLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

// EquipmentList renders the equipment the way the prompt expects it.
func EquipmentList(equipment []string) string {
	if len(equipment) == 0 {
		return "no equipment"
	}
	return strings.Join(equipment, ", ")
}

// DailyWorkout is one day of a plan. Every section is optional.
type DailyWorkout struct {
	WarmUp            string `json:"WarmUp,omitempty"`
	MainExercise      string `json:"MainExercise,omitempty"`
	AccessoryExercise string `json:"AccessoryExercise,omitempty"`
	Cardio            string `json:"Cardio,omitempty"`
}

// UnmarshalJSON tolerates the shapes models drift into: section names in any
// case, with spaces or underscores, or pluralized, and section values given
// as lists, numbers or nested objects. Unknown keys are ignored.
func (d *DailyWorkout) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	*d = DailyWorkout{}
	for _, k := range keys {
		var dst *string
		switch sectionKey(k) {
		case "warmup":
			dst = &d.WarmUp
		case "mainexercise":
			dst = &d.MainExercise
		case "accessoryexercise":
			dst = &d.AccessoryExercise
		case "cardio":
			dst = &d.Cardio
		default:
			continue
		}
		if *dst == "" {
			*dst = sectionText(fields[k])
		}
	}
	return nil
}

func sectionKey(k string) string {
	k = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(k))
	return strings.TrimSuffix(k, "s")
}

// sectionText flattens a section value into display text. Lists become one
// line per item, objects one "key: value" line per field.
func sectionText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return ""
		}
		lines := make([]string, 0, len(items))
		for _, it := range items {
			if line := sectionText(it); line != "" {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, "\n")
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ""
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			if v := sectionText(obj[k]); v != "" {
				lines = append(lines, k+": "+v)
			}
		}
		return strings.Join(lines, "\n")
	case 'n':
		return ""
	default:
		// numbers and booleans keep their literal text
		return string(raw)
	}
}

// Empty reports whether no section is filled in.
func (d DailyWorkout) Empty() bool {
	return d.WarmUp == "" && d.MainExercise == "" && d.AccessoryExercise == "" && d.Cardio == ""
}

// Plan maps a day label ("Day 1".."Day 7") to the workout for that day.
type Plan map[string]DailyWorkout

// UnmarshalJSON keeps every object-valued entry and drops the rest, such as a
// trailing "Notes" string. Labels like "day 1" or "Day1" are normalized.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	labels := make([]string, 0, len(entries))
	for label := range entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	plan := make(Plan, len(entries))
	for _, label := range labels {
		raw := bytes.TrimSpace(entries[label])
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var w DailyWorkout
		if err := json.Unmarshal(raw, &w); err != nil {
			return err
		}
		label = normalizeLabel(label)
		if _, dup := plan[label]; dup {
			continue
		}
		plan[label] = w
	}
	*p = plan
	return nil
}

func normalizeLabel(label string) string {
	rest, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(label)), "day")
	if !ok {
		return label
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 {
		return label
	}
	return DayLabel(n)
}

// Day pairs a label with its workout. Workout is nil when the plan has no
// entry for the label.
type Day struct {
	Label   string
	Workout *DailyWorkout
}

// DayLabel returns the label of the n-th day, starting at 1.
func DayLabel(n int) string {
	return fmt.Sprintf("Day %d", n)
}

// DayLabels lists every day label in order.
func DayLabels() []string {
	labels := make([]string, 0, MaxDays)
	for i := 1; i <= MaxDays; i++ {
		labels = append(labels, DayLabel(i))
	}
	return labels
}

// Days returns the first n days of the week in order.
func (p Plan) Days(n int) []Day {
	if n > MaxDays {
		n = MaxDays
	}
	days := make([]Day, 0, max(n, 0))
	for i := 1; i <= n; i++ {
		label := DayLabel(i)
		d := Day{Label: label}
		if w, ok := p[label]; ok {
			w := w
			d.Workout = &w
		}
		days = append(days, d)
	}
	return days
}
