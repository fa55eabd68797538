// Package prompt builds the generation request sent to the language model.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/workoutplan/internal/workout"
)

//go:embed templates/workoutplan.tmpl
var defaultTemplate string

// Default returns the built-in workout plan prompt template source.
func Default() string {
	return defaultTemplate
}

// Data is what a template is executed with.
type Data struct {
	Goal          string
	Level         string
	AvailableDays int
	Equipment     string
}

// DataFor flattens a profile into template data.
func DataFor(p workout.Profile) Data {
	return Data{
		Goal:          p.Goal,
		Level:         p.Level,
		AvailableDays: p.AvailableDays,
		Equipment:     workout.EquipmentList(p.Equipment),
	}
}

// Generator renders the prompt from the built-in template or a custom one.
type Generator struct {
	tmpl *template.Template
}

// NewGenerator parses the built-in template.
func NewGenerator() *Generator {
	return &Generator{tmpl: template.Must(parse("workoutplan", defaultTemplate))}
}

// NewGeneratorFromFile parses a custom template from path.
func NewGeneratorFromFile(path string) (*Generator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	tmpl, err := parse(path, string(b))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", path, err)
	}
	return &Generator{tmpl: tmpl}, nil
}

// Load returns a generator for path, falling back to the built-in template
// when path is empty or cannot be used.
func Load(path string, log zerolog.Logger) *Generator {
	if path == "" {
		return NewGenerator()
	}
	g, err := NewGeneratorFromFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("using default prompt template")
		return NewGenerator()
	}
	log.Info().Str("path", path).Msg("loaded custom prompt template")
	return g
}

// Build renders the prompt for a profile.
func (g *Generator) Build(p workout.Profile) (string, error) {
	var sb strings.Builder
	if err := g.tmpl.Execute(&sb, DataFor(p)); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

func parse(name, src string) (*template.Template, error) {
	return template.New(name).Option("missingkey=error").Parse(src)
}
