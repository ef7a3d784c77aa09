package topology

import "fmt"

// =============================================================================
// Mounts
// =============================================================================

// AccessMode is the access mode of a mount.
type AccessMode string

const (
	// AccessReadWrite mounts the source read-write.
	AccessReadWrite AccessMode = "rw"

	// AccessReadOnly mounts the source read-only.
	AccessReadOnly AccessMode = "ro"

	// AccessReadOnlyRelabel mounts the source read-only and asks the
	// container engine to relabel it for isolation-aware filesystems
	// (SELinux "Z" option). Mandatory for kinds in relabelRequired.
	AccessReadOnlyRelabel AccessMode = "ro,Z"
)

// Mount declares a host path (or named volume) mapped into a container.
type Mount struct {
	Source string     `json:"source" yaml:"source" mapstructure:"source"`
	Target string     `json:"target" yaml:"target" mapstructure:"target"`
	Mode   AccessMode `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// ReadWrite creates a read-write mount.
func ReadWrite(source, target string) Mount {
	return Mount{Source: source, Target: target, Mode: AccessReadWrite}
}

// ReadOnly creates a read-only mount.
func ReadOnly(source, target string) Mount {
	return Mount{Source: source, Target: target, Mode: AccessReadOnly}
}

// ReadOnlyRelabel creates a read-only mount with mandatory relabeling.
func ReadOnlyRelabel(source, target string) Mount {
	return Mount{Source: source, Target: target, Mode: AccessReadOnlyRelabel}
}

// Named reports whether the source is a named volume rather than a host path.
// Compose treats sources starting with "." or "/" as bind mounts.
func (m Mount) Named() bool {
	if m.Source == "" {
		return false
	}
	return m.Source[0] != '.' && m.Source[0] != '/'
}

// String renders the mount in compose short syntax, e.g.
// "./storage/prometheus/etc:/etc/prometheus:ro,Z". Read-write mounts omit
// the mode suffix.
func (m Mount) String() string {
	if m.Mode == AccessReadWrite {
		return fmt.Sprintf("%s:%s", m.Source, m.Target)
	}
	return fmt.Sprintf("%s:%s:%s", m.Source, m.Target, m.Mode)
}
