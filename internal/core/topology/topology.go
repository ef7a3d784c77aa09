package topology

import "fmt"

// =============================================================================
// Declarations
// =============================================================================

// ServiceDeclaration is the user-facing description of one service. Zero
// values fall back to the static per-kind rules: empty Ports and Mounts use
// DefaultPorts/DefaultMounts for the kind.
type ServiceDeclaration struct {
	Kind     ServiceKind   `json:"kind" yaml:"kind" mapstructure:"kind"`
	Networks []Network     `json:"networks,omitempty" yaml:"networks,omitempty" mapstructure:"networks"`
	Ports    []PortBinding `json:"ports,omitempty" yaml:"ports,omitempty" mapstructure:"ports"`
	Mounts   []Mount       `json:"mounts,omitempty" yaml:"mounts,omitempty" mapstructure:"mounts"`
}

// =============================================================================
// Service Topology
// =============================================================================

// ServiceTopology is the resolved topology of a single service: static
// per-kind rules merged with the user declaration.
type ServiceTopology struct {
	Kind     ServiceKind
	Image    string
	Networks []Network
	Ports    []PortBinding
	Mounts   []Mount
}

// HasPorts reports whether the service exposes any host ports.
func (s ServiceTopology) HasPorts() bool {
	return len(s.Ports) > 0
}

// =============================================================================
// Aggregate
// =============================================================================

// DockerComposeTopology owns the ordered service topologies plus the derived
// global network list. Instances are always valid: the constructor validates
// every invariant atomically and fails without producing a partial value.
type DockerComposeTopology struct {
	services []ServiceTopology
	networks []Network
}

// Services returns the resolved service topologies in declaration order.
func (t *DockerComposeTopology) Services() []ServiceTopology {
	return t.services
}

// Networks returns the global network list: the union of every network
// referenced by any service, deduplicated, in first-seen order. Ordering is
// deterministic so rendered descriptors are stable across runs.
func (t *DockerComposeTopology) Networks() []Network {
	return t.networks
}

// NamedVolumes returns the named volumes referenced by any service mount,
// deduplicated, in first-seen order.
func (t *DockerComposeTopology) NamedVolumes() []string {
	seen := make(map[string]bool)
	var volumes []string
	for _, svc := range t.services {
		for _, m := range svc.Mounts {
			if m.Named() && !seen[m.Source] {
				seen[m.Source] = true
				volumes = append(volumes, m.Source)
			}
		}
	}
	return volumes
}

// Build derives a DockerComposeTopology from the declared services.
//
// For each declaration it resolves the service topology from static per-kind
// rules plus the declared overrides, accumulates the global network union in
// first-seen order, and validates:
//
//   - every declared kind is known
//   - no kind is declared twice
//   - every referenced network belongs to the closed network set
//   - read-only mounts on relabel-required kinds carry the relabel option
//   - no two services bind the same host port
//
// Any violation aborts construction with a *TopologyError; partial
// topologies are never returned. Given identical declarations the result is
// identical, including ordering.
func Build(decls []ServiceDeclaration) (*DockerComposeTopology, error) {
	seenKinds := make(map[ServiceKind]bool, len(decls))
	seenNetworks := make(map[Network]bool)
	boundPorts := make(map[uint16]ServiceKind)

	services := make([]ServiceTopology, 0, len(decls))
	var networks []Network

	for _, decl := range decls {
		if !knownServiceKinds[decl.Kind] {
			return nil, newTopologyError(decl.Kind, "declaration", ErrUnknownService)
		}
		if seenKinds[decl.Kind] {
			return nil, newTopologyError(decl.Kind, "declaration", ErrDuplicateService)
		}
		seenKinds[decl.Kind] = true

		svc := resolveService(decl)

		for _, network := range svc.Networks {
			if !network.Known() {
				return nil, newTopologyError(decl.Kind,
					fmt.Sprintf("references network %q", network), ErrUnknownNetwork)
			}
			if !seenNetworks[network] {
				seenNetworks[network] = true
				networks = append(networks, network)
			}
		}

		if err := validateMounts(svc); err != nil {
			return nil, err
		}

		for _, port := range svc.Ports {
			if owner, taken := boundPorts[port.HostPort]; taken {
				return nil, newTopologyError(decl.Kind,
					fmt.Sprintf("host port %d already bound by %q", port.HostPort, owner),
					ErrPortConflict)
			}
			boundPorts[port.HostPort] = decl.Kind
		}

		services = append(services, svc)
	}

	return &DockerComposeTopology{services: services, networks: networks}, nil
}

// resolveService merges a declaration with the static per-kind rules.
func resolveService(decl ServiceDeclaration) ServiceTopology {
	svc := ServiceTopology{
		Kind:     decl.Kind,
		Image:    Image(decl.Kind),
		Networks: decl.Networks,
		Ports:    decl.Ports,
		Mounts:   decl.Mounts,
	}
	if len(svc.Ports) == 0 {
		svc.Ports = DefaultPorts(decl.Kind)
	}
	if len(svc.Mounts) == 0 {
		svc.Mounts = DefaultMounts(decl.Kind)
	}
	return svc
}

// validateMounts checks mount access modes against the service kind.
func validateMounts(svc ServiceTopology) error {
	for _, m := range svc.Mounts {
		if m.Source == "" || m.Target == "" {
			return newTopologyError(svc.Kind,
				fmt.Sprintf("mount %q -> %q", m.Source, m.Target), ErrInvalidMount)
		}
		if relabelRequired[svc.Kind] && m.Mode == AccessReadOnly {
			return newTopologyError(svc.Kind,
				fmt.Sprintf("mount %q must use relabeled read-only mode", m.Source),
				ErrRelabelRequired)
		}
	}
	return nil
}
