package envoy

import "strings"

// isCasperCluster reports whether a cluster name follows the
// spectre.<service>.egress_cluster convention of the casper layer.
func isCasperCluster(name string) bool {
	return strings.HasPrefix(name, casperPrefix) && strings.HasSuffix(name, egressClusterSuffix)
}

// CasperEndpoints collects every (address, port) pair that belongs to the
// casper forward-proxy layer, so other services' backend lists can exclude
// or flag endpoints routed through it. Pure function of the snapshot.
func CasperEndpoints(snapshot *ClusterSnapshot) map[HostPort]struct{} {
	endpoints := make(map[HostPort]struct{})
	for _, cluster := range snapshot.ClusterStatuses {
		if !isCasperCluster(cluster.Name) {
			continue
		}
		for _, host := range cluster.HostStatuses {
			endpoints[HostPort{
				Address: host.Address.SocketAddress.Address,
				Port:    host.Address.SocketAddress.PortValue,
			}] = struct{}{}
		}
	}
	return endpoints
}
