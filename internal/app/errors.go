package app

import (
	"errors"
	"fmt"

	"trackerdeploy/internal/core/environment"
	"trackerdeploy/internal/core/topology"
	"trackerdeploy/internal/shell/store"
)

// =============================================================================
// Error Classification
// =============================================================================

// ErrorKind classifies an orchestrator failure for the CLI surface. Every
// failure an orchestrator returns carries exactly one kind.
type ErrorKind string

const (
	// KindEnvironmentNotFound - no persisted record for the name. The user
	// creates the environment first.
	KindEnvironmentNotFound ErrorKind = "EnvironmentNotFound"

	// KindInvalidPhaseTransition - the operation is not valid from the
	// current phase. Nothing was mutated.
	KindInvalidPhaseTransition ErrorKind = "InvalidPhaseTransition"

	// KindTopologyError - the derived topology violates an invariant. Only
	// fixing the service declarations resolves it.
	KindTopologyError ErrorKind = "TopologyError"

	// KindAdapterFailure - an external tool, provider API or remote command
	// failed. Committed state is preserved untouched for retry.
	KindAdapterFailure ErrorKind = "AdapterFailure"

	// KindPersistenceFailure - the state store could not read or write its
	// record. Fatal for the invocation.
	KindPersistenceFailure ErrorKind = "PersistenceFailure"
)

// Error is a classified orchestrator failure.
type Error struct {
	Kind ErrorKind
	Err  error

	// StatePreserved reports whether previously committed environment state
	// survives this failure untouched. Surfaced to the user so a failed
	// destroy reads as "local state preserved for manual cleanup".
	StatePreserved bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error chain. Unclassified
// errors report as AdapterFailure, the catch-all for external failures.
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindAdapterFailure
}

// classify wraps sub-step errors that cross the orchestrator boundary.
// Errors already classified pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindEnvironmentNotFound, Err: err, StatePreserved: true}
	case errors.Is(err, environment.ErrInvalidTransition),
		errors.Is(err, environment.ErrPreconditionNotMet):
		return &Error{Kind: KindInvalidPhaseTransition, Err: err, StatePreserved: true}
	case isTopologyError(err):
		return &Error{Kind: KindTopologyError, Err: err, StatePreserved: true}
	case errors.Is(err, store.ErrVersionMismatch):
		return &Error{Kind: KindPersistenceFailure, Err: err, StatePreserved: true}
	default:
		return &Error{Kind: KindAdapterFailure, Err: err, StatePreserved: true}
	}
}

func isTopologyError(err error) bool {
	var topoErr *topology.TopologyError
	return errors.As(err, &topoErr)
}

func adapterFailure(err error) error {
	return &Error{Kind: KindAdapterFailure, Err: err, StatePreserved: true}
}

func persistenceFailure(err error) error {
	return &Error{Kind: KindPersistenceFailure, Err: err, StatePreserved: true}
}

func invalidTransition(err error) error {
	return &Error{Kind: KindInvalidPhaseTransition, Err: err, StatePreserved: true}
}
