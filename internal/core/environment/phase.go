package environment

import (
	"errors"
	"fmt"
)

// =============================================================================
// Lifecycle Phases
// =============================================================================

// Phase is the environment's position in its lifecycle. The set is closed;
// a failed transition never commits a phase, so there is no failed phase -
// the environment simply remains at its last committed one.
type Phase string

const (
	PhaseCreated     Phase = "created"
	PhaseProvisioned Phase = "provisioned"
	PhaseConfigured  Phase = "configured"
	PhaseReleased    Phase = "released"
	PhaseRunning     Phase = "running"
	PhaseDestroyed   Phase = "destroyed"
)

var ErrInvalidTransition = errors.New("invalid phase transition")

// validTransitions defines the allowed phase transitions. Destroyed is
// reachable from every non-terminal phase.
var validTransitions = map[Phase][]Phase{
	PhaseCreated:     {PhaseProvisioned, PhaseDestroyed},
	PhaseProvisioned: {PhaseConfigured, PhaseDestroyed},
	PhaseConfigured:  {PhaseReleased, PhaseDestroyed},
	PhaseReleased:    {PhaseRunning, PhaseDestroyed},
	PhaseRunning:     {PhaseDestroyed},
	PhaseDestroyed:   {}, // Terminal state
}

// Known reports whether p is a member of the closed phase set.
func (p Phase) Known() bool {
	_, ok := validTransitions[p]
	return ok
}

// ValidateTransition checks if a phase transition is valid.
func ValidateTransition(from, to Phase) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidTransition, from)
	}

	for _, p := range allowed {
		if p == to {
			return nil
		}
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
