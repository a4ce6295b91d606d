// Package stages holds the canonical ordered list of pipeline stages. The
// registry is populated once at process start and is immutable after that.
package stages

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Ramsey-B/trellis/pkg/models"
)

// ErrUnknownStage is returned for a stage value outside the registry.
var ErrUnknownStage = errors.New("unknown stage")

// Registry is the fixed, totally ordered stage enumeration. Active stages
// come first in funnel order; terminal stages (closed outcomes) follow and
// have no successor.
type Registry struct {
	active    []models.Stage
	terminals []models.Stage
	index     map[models.Stage]int
	terminal  map[models.Stage]bool
}

// NewRegistry builds a registry from ordered active stage names and terminal
// stage names. Names are trimmed and lowercased; duplicates and empties are
// rejected.
func NewRegistry(active, terminals []string) (*Registry, error) {
	if len(active) == 0 {
		return nil, fmt.Errorf("at least one active stage is required")
	}
	if len(terminals) == 0 {
		return nil, fmt.Errorf("at least one terminal stage is required")
	}

	r := &Registry{
		index:    make(map[models.Stage]int),
		terminal: make(map[models.Stage]bool),
	}

	add := func(name string, isTerminal bool) error {
		stage := models.Stage(strings.ToLower(strings.TrimSpace(name)))
		if stage == "" {
			return fmt.Errorf("empty stage name")
		}
		if _, exists := r.index[stage]; exists {
			return fmt.Errorf("duplicate stage %q", stage)
		}
		r.index[stage] = len(r.active) + len(r.terminals)
		if isTerminal {
			r.terminal[stage] = true
			r.terminals = append(r.terminals, stage)
		} else {
			r.active = append(r.active, stage)
		}
		return nil
	}

	for _, name := range active {
		if err := add(name, false); err != nil {
			return nil, err
		}
	}
	for _, name := range terminals {
		if err := add(name, true); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Index returns the stage's position in canonical order.
func (r *Registry) Index(stage models.Stage) (int, error) {
	i, ok := r.index[stage]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	return i, nil
}

// Contains reports whether the stage is a recognized value.
func (r *Registry) Contains(stage models.Stage) bool {
	_, ok := r.index[stage]
	return ok
}

// IsTerminal reports whether the stage represents a closed outcome.
func (r *Registry) IsTerminal(stage models.Stage) bool {
	return r.terminal[stage]
}

// Successor returns the next stage in canonical order. The last active stage
// and all terminal stages have no successor.
func (r *Registry) Successor(stage models.Stage) (models.Stage, bool) {
	i, ok := r.index[stage]
	if !ok || r.terminal[stage] {
		return "", false
	}
	if i+1 >= len(r.active) {
		return "", false
	}
	return r.active[i+1], true
}

// Active returns the active stages in canonical order.
func (r *Registry) Active() []models.Stage {
	out := make([]models.Stage, len(r.active))
	copy(out, r.active)
	return out
}

// Terminals returns the terminal stages in declaration order.
func (r *Registry) Terminals() []models.Stage {
	out := make([]models.Stage, len(r.terminals))
	copy(out, r.terminals)
	return out
}

// All returns every stage, active stages first.
func (r *Registry) All() []models.Stage {
	out := make([]models.Stage, 0, len(r.active)+len(r.terminals))
	out = append(out, r.active...)
	out = append(out, r.terminals...)
	return out
}

// First returns the first active stage, the default entry point of the funnel.
func (r *Registry) First() models.Stage {
	return r.active[0]
}

// LastActive returns the final active stage before the terminal branch.
func (r *Registry) LastActive() models.Stage {
	return r.active[len(r.active)-1]
}
