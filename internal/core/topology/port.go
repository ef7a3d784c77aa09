package topology

import "fmt"

// =============================================================================
// Port Bindings
// =============================================================================

// Protocol is the transport protocol of a port binding.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// PortBinding maps a host port to a container port. The description is
// carried into rendered descriptors as documentation.
type PortBinding struct {
	HostPort      uint16   `json:"host_port" yaml:"host_port" mapstructure:"host_port"`
	ContainerPort uint16   `json:"container_port" yaml:"container_port" mapstructure:"container_port"`
	Protocol      Protocol `json:"protocol" yaml:"protocol" mapstructure:"protocol"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// TCP creates a binding where host and container ports match.
func TCP(port uint16, description string) PortBinding {
	return PortBinding{
		HostPort:      port,
		ContainerPort: port,
		Protocol:      ProtocolTCP,
		Description:   description,
	}
}

// UDP creates a binding where host and container ports match.
func UDP(port uint16, description string) PortBinding {
	return PortBinding{
		HostPort:      port,
		ContainerPort: port,
		Protocol:      ProtocolUDP,
		Description:   description,
	}
}

// String renders the binding in compose short syntax, e.g. "6969:6969/udp".
func (p PortBinding) String() string {
	return fmt.Sprintf("%d:%d/%s", p.HostPort, p.ContainerPort, p.Protocol)
}

// PublishedPorts returns every default host port binding across all service
// kinds, in service declaration order. Providers use this to open firewall
// rules for the full stack.
func PublishedPorts() []PortBinding {
	var bindings []PortBinding
	for _, kind := range AllServiceKinds() {
		bindings = append(bindings, defaultPorts[kind]...)
	}
	return bindings
}
