package topology

// =============================================================================
// Networks
// =============================================================================

// Network identifies a compose network used for service isolation.
//
// Each network serves a specific security purpose:
//   - NetworkDatabase isolates database access (tracker <-> mysql)
//   - NetworkMetrics allows Prometheus to scrape the tracker
//   - NetworkVisualization allows Grafana to query Prometheus
//   - NetworkProxy allows Caddy to reverse proxy to backend services
type Network string

const (
	NetworkDatabase      Network = "database_network"
	NetworkMetrics       Network = "metrics_network"
	NetworkVisualization Network = "visualization_network"
	NetworkProxy         Network = "proxy_network"
)

// knownNetworks is the closed set used for declaration validation.
var knownNetworks = map[Network]bool{
	NetworkDatabase:      true,
	NetworkMetrics:       true,
	NetworkVisualization: true,
	NetworkProxy:         true,
}

// Driver returns the compose network driver. All networks use bridge.
func (n Network) Driver() string {
	return "bridge"
}

// Known reports whether the network is part of the closed topology set.
func (n Network) Known() bool {
	return knownNetworks[n]
}
