// Package persona holds the fixed roster of advisor personas.
package persona

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrUnknownPersona = errors.New("unknown persona")

// Persona is one advisor identity. Instructions is the persona-specific part
// of its system template; Baseline is prepended to every persona.
type Persona struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Emoji        string   `json:"emoji"`
	Expertise    []string `json:"expertise"`
	RoutingHints []string `json:"routing_hints,omitempty"`
	Personality  string   `json:"personality"`
	Instructions string   `json:"-"`
	// CanCall marks the persona allowed to issue structured calls.
	CanCall bool `json:"can_call"`
	// FullContext grants access to every transcript of the idea.
	FullContext bool `json:"full_context"`
	// Routable is false for personas the router never picks.
	Routable bool `json:"routable"`
}

// SystemTemplate is the baseline block followed by the persona's own instructions.
func (p Persona) SystemTemplate() string {
	return strings.TrimSpace(Baseline) + "\n\n" + strings.TrimSpace(p.Instructions)
}

// Label renders "Name (Title)" for prompts and tables.
func (p Persona) Label() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Title)
}

func (p Persona) clone() Persona {
	p.Expertise = slices.Clone(p.Expertise)
	p.RoutingHints = slices.Clone(p.RoutingHints)
	return p
}

// Registry is an immutable, ordered persona table.
type Registry struct {
	order     []string
	byID      map[string]Persona
	defaultID string
}

// NewRegistry builds a registry in the given order. defaultID must name one of the personas.
func NewRegistry(defaultID string, personas ...Persona) (*Registry, error) {
	r := &Registry{byID: make(map[string]Persona, len(personas)), defaultID: defaultID}
	for _, p := range personas {
		if p.ID == "" {
			return nil, fmt.Errorf("persona with empty id")
		}
		if _, dup := r.byID[p.ID]; dup {
			return nil, fmt.Errorf("persona %s registered twice", p.ID)
		}
		r.byID[p.ID] = p.clone()
		r.order = append(r.order, p.ID)
	}
	if _, ok := r.byID[defaultID]; !ok {
		return nil, fmt.Errorf("default persona %s: %w", defaultID, ErrUnknownPersona)
	}
	return r, nil
}

// Default returns the built-in twelve-persona roster with the operations persona as default.
func Default() *Registry {
	r, err := NewRegistry(Operations, builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns a copy of the persona; callers cannot change the registry.
func (r *Registry) Get(id string) (Persona, bool) {
	p, ok := r.byID[id]
	return p.clone(), ok
}

// Lookup is Get with an error suitable for returning to callers.
func (r *Registry) Lookup(id string) (Persona, error) {
	p, ok := r.byID[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
	}
	return p.clone(), nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns personas in registration order.
func (r *Registry) All() []Persona {
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// Routable returns the personas the router may choose from, in order.
func (r *Registry) Routable() []Persona {
	var out []Persona
	for _, p := range r.All() {
		if p.Routable {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Default() Persona {
	return r.byID[r.defaultID].clone()
}

// Name returns the display name for id, or id itself when unknown.
func (r *Registry) Name(id string) string {
	if p, ok := r.byID[id]; ok {
		return p.Name
	}
	return id
}
