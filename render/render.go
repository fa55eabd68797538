// Package render formats a generated plan for terminals and files.
package render

import (
	"sort"

	"github.com/briangreenhill/workoutplan/internal/workout"
)

// Renderer turns the first days of a plan into text.
type Renderer interface {
	// Name is the value selected with --format (e.g. "markdown", "json")
	Name() string

	Render(plan workout.Plan, days int) (string, error)
}

// Registry manages the available output formats
type Registry struct {
	renderers map[string]Renderer
}

func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// Default returns a registry with every built-in format.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Markdown{})
	r.Register(JSON{Indent: "  "})
	r.Register(Text{})
	return r
}

func (r *Registry) Register(renderer Renderer) {
	r.renderers[renderer.Name()] = renderer
}

func (r *Registry) Get(name string) (Renderer, bool) {
	renderer, ok := r.renderers[name]
	return renderer, ok
}

// List returns the registered format names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
