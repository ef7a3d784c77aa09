package topology

// =============================================================================
// Service Kinds
// =============================================================================

// ServiceKind identifies a service in the deployed stack.
type ServiceKind string

const (
	// ServiceTracker is the core BitTorrent tracker. Always present.
	ServiceTracker ServiceKind = "tracker"

	// ServiceMySQL provides persistent storage when SQLite is not used.
	ServiceMySQL ServiceKind = "mysql"

	// ServicePrometheus scrapes metrics from the tracker.
	ServicePrometheus ServiceKind = "prometheus"

	// ServiceGrafana displays dashboards with Prometheus data.
	ServiceGrafana ServiceKind = "grafana"

	// ServiceCaddy terminates TLS in front of the HTTP services.
	ServiceCaddy ServiceKind = "caddy"
)

// AllServiceKinds returns every known service kind.
func AllServiceKinds() []ServiceKind {
	return []ServiceKind{
		ServiceTracker,
		ServiceMySQL,
		ServicePrometheus,
		ServiceGrafana,
		ServiceCaddy,
	}
}

// knownServiceKinds is the closed set used for declaration validation.
var knownServiceKinds = map[ServiceKind]bool{
	ServiceTracker:    true,
	ServiceMySQL:      true,
	ServicePrometheus: true,
	ServiceGrafana:    true,
	ServiceCaddy:      true,
}

// serviceImages maps each kind to its container image.
var serviceImages = map[ServiceKind]string{
	ServiceTracker:    "torrust/tracker:develop",
	ServiceMySQL:      "mysql:8.0",
	ServicePrometheus: "prom/prometheus:latest",
	ServiceGrafana:    "grafana/grafana:latest",
	ServiceCaddy:      "caddy:2-alpine",
}

// relabelRequired marks kinds whose read-only mounts must carry the SELinux
// relabel option. Prometheus reads its config from a host path that the
// container engine relabels on isolation-aware filesystems.
var relabelRequired = map[ServiceKind]bool{
	ServicePrometheus: true,
}

// defaultPorts holds the static per-kind port bindings applied when a
// declaration does not override them.
var defaultPorts = map[ServiceKind][]PortBinding{
	ServiceTracker: {
		UDP(6868, "BitTorrent UDP tracker (peerless)"),
		UDP(6969, "BitTorrent UDP announce"),
		TCP(7070, "HTTP tracker announce"),
		TCP(1212, "Tracker REST API"),
	},
	ServicePrometheus: {
		TCP(9090, "Prometheus web UI"),
	},
	ServiceGrafana: {
		TCP(3100, "Grafana web UI"),
	},
	ServiceCaddy: {
		TCP(80, "HTTP"),
		TCP(443, "HTTPS"),
	},
	// MySQL is internal-only and exposes no host ports.
}

// defaultMounts holds the static per-kind mount declarations applied when a
// declaration does not override them.
var defaultMounts = map[ServiceKind][]Mount{
	ServiceTracker: {
		ReadWrite("./storage/tracker/lib", "/var/lib/torrust/tracker"),
		ReadWrite("./storage/tracker/log", "/var/log/torrust/tracker"),
		ReadWrite("./storage/tracker/etc", "/etc/torrust/tracker"),
	},
	ServiceMySQL: {
		ReadWrite("mysql_data", "/var/lib/mysql"),
	},
	ServicePrometheus: {
		ReadOnlyRelabel("./storage/prometheus/etc", "/etc/prometheus"),
	},
	ServiceGrafana: {
		ReadWrite("grafana_data", "/var/lib/grafana"),
	},
	ServiceCaddy: {
		ReadOnly("./storage/caddy/etc/Caddyfile", "/etc/caddy/Caddyfile"),
		ReadWrite("caddy_data", "/data"),
	},
}

// DefaultPorts returns the static port bindings for a service kind.
func DefaultPorts(kind ServiceKind) []PortBinding {
	return defaultPorts[kind]
}

// DefaultMounts returns the static mount declarations for a service kind.
func DefaultMounts(kind ServiceKind) []Mount {
	return defaultMounts[kind]
}

// Image returns the container image for a service kind.
func Image(kind ServiceKind) string {
	return serviceImages[kind]
}
