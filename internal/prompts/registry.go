package prompts

import (
	"fmt"
	"sync"
)

// Registry holds compiled templates by name, keeping only the highest
// registered version for each.
type Registry struct {
	mu        sync.RWMutex
	templates map[PromptName]Template
}

func NewRegistry() *Registry {
	return &Registry{templates: make(map[PromptName]Template)}
}

func (r *Registry) Register(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.templates[t.Name]; ok && existing.Version >= t.Version {
		return
	}
	r.templates[t.Name] = t
}

// RegisterSpec compiles and registers a Spec, panicking on a malformed
// built-in declaration (a programmer error caught at startup).
func (r *Registry) RegisterSpec(s Spec) {
	t, err := MakeTemplate(s)
	if err != nil {
		panic(err)
	}
	r.Register(t)
}

func (r *Registry) Get(name PromptName) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("prompt %q not registered", name)
	}
	return t, nil
}

// MustGet is for callers that registered the template themselves at startup.
func (r *Registry) MustGet(name PromptName) Template {
	t, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns a registry with every built-in prompt registered.
func Default() *Registry {
	r := NewRegistry()
	RegisterAll(r)
	return r
}
