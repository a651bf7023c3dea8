package envoy

import (
	"fmt"

	"github.com/ymilki/paasta/internal/scheduler"
)

// Cluster naming conventions on the mesh. A cluster represents a routable
// service iff its name ends with egressClusterSuffix; it belongs to the
// casper forward-proxy layer iff it additionally starts with casperPrefix.
const (
	egressClusterSuffix = ".egress_cluster"
	casperPrefix        = "spectre."
)

// ClusterSnapshot is the parsed response of the admin /clusters endpoint.
// It is owned by the call that fetched it and discarded after one
// correlation pass.
type ClusterSnapshot struct {
	ClusterStatuses []ClusterStatus `json:"cluster_statuses"`
}

// ClusterStatus is one named cluster and its live hosts.
type ClusterStatus struct {
	Name         string       `json:"name"`
	HostStatuses []HostStatus `json:"host_statuses,omitempty"`
}

// HostStatus is a read-only view of one endpoint inside a cluster.
type HostStatus struct {
	Address      Address      `json:"address"`
	HealthStatus HealthStatus `json:"health_status"`
	Weight       int          `json:"weight"`
}

type Address struct {
	SocketAddress SocketAddress `json:"socket_address"`
}

type SocketAddress struct {
	Address   string `json:"address"`
	PortValue int    `json:"port_value"`
}

type HealthStatus struct {
	EDSHealthStatus string `json:"eds_health_status"`
}

// HostPort identifies an endpoint on the network and is the join key for
// casper filtering and task correlation.
type HostPort struct {
	Address string
	Port    int
}

func (hp HostPort) String() string {
	return fmt.Sprintf("%s:%d", hp.Address, hp.Port)
}

// Backend is the normalized, service-facing view of one live endpoint.
type Backend struct {
	Address              string `json:"address"`
	Port                 int    `json:"port_value"`
	Hostname             string `json:"hostname"`
	HealthStatus         string `json:"eds_health_status"`
	Weight               int    `json:"weight"`
	ProxiedThroughCasper bool   `json:"is_proxied_through_casper"`
	HasAssociatedTask    bool   `json:"has_associated_task"`
}

// HostPort returns the backend's network identity.
func (b Backend) HostPort() HostPort {
	return HostPort{Address: b.Address, Port: b.Port}
}

// CorrelationPair associates a live backend with a scheduler task. Either
// side may be nil to denote no match, never both.
type CorrelationPair struct {
	Backend *Backend
	Task    *scheduler.Task
}
