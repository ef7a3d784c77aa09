package environment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Environment Errors
// =============================================================================

var (
	ErrPreconditionNotMet  = errors.New("transition precondition not met")
	ErrOutputsAlreadySet   = errors.New("runtime outputs already recorded")
	ErrMissingInstanceAddr = errors.New("provision result has no instance address")
)

// =============================================================================
// Environment
// =============================================================================

// Environment is the root entity: one named, independently lifecycled
// deployment target. Transitions pattern-match on the current phase and
// either mutate the aggregate or return a typed error; committing the result
// to the state store is the orchestrator's job.
type Environment struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Phase   Phase          `json:"phase"`
	Inputs  UserInputs     `json:"user_inputs"`
	Outputs RuntimeOutputs `json:"runtime_outputs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an environment in phase Created from validated user inputs.
func New(name string, inputs UserInputs) (*Environment, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := inputs.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Environment{
		ID:        uuid.New().String(),
		Name:      name,
		Phase:     PhaseCreated,
		Inputs:    inputs,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// InstanceName returns the instance name derived from the environment name.
func (e *Environment) InstanceName() string {
	return InstanceName(e.Name)
}

// HasRuntimeOutputs reports whether provisioning outputs are recorded.
// Invariant: true iff the phase is at-or-after Provisioned and before
// Destroyed.
func (e *Environment) HasRuntimeOutputs() bool {
	return !e.Outputs.Empty()
}

// =============================================================================
// Transitions
// =============================================================================

// Provision records the provisioning result and advances Created ->
// Provisioned. It requires that no prior runtime outputs exist.
func (e *Environment) Provision(outputs RuntimeOutputs) error {
	if err := ValidateTransition(e.Phase, PhaseProvisioned); err != nil {
		return err
	}
	if e.HasRuntimeOutputs() {
		return ErrOutputsAlreadySet
	}
	if outputs.InstanceAddress == "" {
		return ErrMissingInstanceAddr
	}

	e.Outputs = outputs
	e.commit(PhaseProvisioned)
	return nil
}

// Configure advances Provisioned -> Configured. Runtime outputs must be
// present: configuration targets the provisioned address.
func (e *Environment) Configure() error {
	if err := ValidateTransition(e.Phase, PhaseConfigured); err != nil {
		return err
	}
	if !e.HasRuntimeOutputs() {
		return fmt.Errorf("%w: no runtime outputs recorded", ErrPreconditionNotMet)
	}

	e.commit(PhaseConfigured)
	return nil
}

// Release advances Configured -> Released.
func (e *Environment) Release() error {
	if err := ValidateTransition(e.Phase, PhaseReleased); err != nil {
		return err
	}

	e.commit(PhaseReleased)
	return nil
}

// Run advances Released -> Running.
func (e *Environment) Run() error {
	if err := ValidateTransition(e.Phase, PhaseRunning); err != nil {
		return err
	}

	e.commit(PhaseRunning)
	return nil
}

// Destroy advances any non-terminal phase to Destroyed and clears runtime
// outputs. Callers must only invoke this after the destroy adapter has
// succeeded; a failed adapter call leaves the aggregate untouched so the
// user can retry.
func (e *Environment) Destroy() error {
	if err := ValidateTransition(e.Phase, PhaseDestroyed); err != nil {
		return err
	}

	e.Outputs = RuntimeOutputs{}
	e.commit(PhaseDestroyed)
	return nil
}

func (e *Environment) commit(phase Phase) {
	e.Phase = phase
	e.UpdatedAt = time.Now().UTC()
}
