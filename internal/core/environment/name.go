package environment

import (
	"errors"
	"fmt"
)

// =============================================================================
// Environment Names
// =============================================================================

// MaxNameLength bounds environment names so they stay usable as directory
// names and instance-name components.
const MaxNameLength = 63

var (
	ErrEmptyName   = errors.New("environment name must not be empty")
	ErrNameTooLong = errors.New("environment name too long")
	ErrInvalidName = errors.New("environment name must be lowercase letters, digits and hyphens")
)

// ValidateName checks that a name is URL-safe: lowercase letters, digits and
// hyphens, not starting or ending with a hyphen. Names are immutable after
// creation and key the persisted state record.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrNameTooLong, len(name), MaxNameLength)
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			continue
		}
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// InstanceName derives the VM/container instance name for an environment.
func InstanceName(name string) string {
	return fmt.Sprintf("torrust-tracker-%s", name)
}
