package topology

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Declaration validation errors
	ErrUnknownService   = errors.New("unknown service kind")
	ErrDuplicateService = errors.New("service declared more than once")
	ErrUnknownNetwork   = errors.New("network is not part of the topology")

	// Mount validation errors
	ErrRelabelRequired = errors.New("service requires relabeled read-only mounts")
	ErrInvalidMount    = errors.New("invalid mount declaration")

	// Port validation errors
	ErrPortConflict = errors.New("host port bound by more than one service")
)

// TopologyError identifies the offending service and the violated rule.
// It wraps one of the sentinel errors above so callers can classify with
// errors.Is.
type TopologyError struct {
	Service ServiceKind
	Detail  string
	Err     error
}

func (e *TopologyError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("topology: service %q: %s: %v", e.Service, e.Detail, e.Err)
	}
	return fmt.Sprintf("topology: %s: %v", e.Detail, e.Err)
}

func (e *TopologyError) Unwrap() error {
	return e.Err
}

func newTopologyError(service ServiceKind, detail string, err error) *TopologyError {
	return &TopologyError{Service: service, Detail: detail, Err: err}
}
