package templates

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTemplateNotFound is returned when a template ID is not registered.
var ErrTemplateNotFound = errors.New("templates: template not found")

// Registry is a concurrency-safe in-memory template catalog keyed by ID.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry creates a registry preloaded with the given templates.
func NewRegistry(tmpls ...Template) *Registry {
	r := &Registry{templates: make(map[string]Template, len(tmpls))}
	for _, t := range tmpls {
		r.templates[t.ID] = t
	}
	return r
}

// Register adds or replaces a template.
func (r *Registry) Register(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
}

// Template returns the template with the given ID.
func (r *Registry) Template(ctx context.Context, id string) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}
