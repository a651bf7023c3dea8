package envoy

import (
	"context"
	"strings"

	disterrors "github.com/ymilki/paasta/internal/errors"
)

// ServiceFilter restricts extraction to a set of service names. An empty
// or nil filter admits every service.
type ServiceFilter map[string]struct{}

// NewServiceFilter builds a filter from service names.
func NewServiceFilter(services ...string) ServiceFilter {
	if len(services) == 0 {
		return nil
	}
	filter := make(ServiceFilter, len(services))
	for _, s := range services {
		filter[s] = struct{}{}
	}
	return filter
}

func (f ServiceFilter) admits(service string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[service]
	return ok
}

// ExtractBackends walks the snapshot's egress clusters and emits one
// normalized Backend per live endpoint, in snapshot order.
//
// Endpoints of a non-casper service that are really casper endpoints are
// excluded from that service's list; once any such exclusion happened, every
// remaining backend of that cluster is flagged ProxiedThroughCasper, meaning
// "this service is served, at least in part, through casper". Casper's own
// clusters are never filtered against themselves.
//
// A reverse DNS failure for any endpoint fails the whole extraction: a
// backend without a hostname cannot be safely displayed or matched, and a
// partial list would corrupt the correlation's completeness.
func ExtractBackends(ctx context.Context, snapshot *ClusterSnapshot, casperEndpoints map[HostPort]struct{}, filter ServiceFilter, resolver Resolver) ([]Backend, error) {
	var backends []Backend
	for _, cluster := range snapshot.ClusterStatuses {
		if !strings.HasSuffix(cluster.Name, egressClusterSuffix) {
			continue
		}
		serviceName := strings.TrimSuffix(cluster.Name, egressClusterSuffix)
		if !filter.admits(serviceName) {
			continue
		}

		isCasperService := strings.HasPrefix(serviceName, casperPrefix)
		var clusterBackends []Backend
		casperFound := false
		for _, host := range cluster.HostStatuses {
			address := host.Address.SocketAddress.Address
			port := host.Address.SocketAddress.PortValue

			// A casper endpoint listed under another service is not one
			// of that service's own backends.
			if !isCasperService {
				if _, ok := casperEndpoints[HostPort{Address: address, Port: port}]; ok {
					casperFound = true
					continue
				}
			}

			hostname, err := reverseLookup(ctx, resolver, address)
			if err != nil {
				return nil, disterrors.New(disterrors.KindReverseDNS, "extract_backends", err).WithHost(address)
			}

			clusterBackends = append(clusterBackends, Backend{
				Address:      address,
				Port:         port,
				Hostname:     hostname,
				HealthStatus: host.HealthStatus.EDSHealthStatus,
				Weight:       host.Weight,
			})
		}

		if casperFound {
			for i := range clusterBackends {
				clusterBackends[i].ProxiedThroughCasper = true
			}
		}
		backends = append(backends, clusterBackends...)
	}
	return backends, nil
}

// reverseLookup resolves an address to its short hostname (first label of
// the first returned name).
func reverseLookup(ctx context.Context, resolver Resolver, address string) (string, error) {
	names, err := resolver.LookupAddr(ctx, address)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", &noPTRError{address: address}
	}
	name := strings.TrimSuffix(names[0], ".")
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name, nil
}

type noPTRError struct {
	address string
}

func (e *noPTRError) Error() string {
	return "no PTR record for " + e.address
}
