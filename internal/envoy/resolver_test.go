package envoy

import (
	"context"
	"fmt"
)

// fakeResolver maps addresses to PTR names and hosts to IPs without touching
// real DNS.
type fakeResolver struct {
	ptr   map[string][]string
	hosts map[string][]string
}

func (f *fakeResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	if names, ok := f.ptr[addr]; ok {
		return names, nil
	}
	return nil, fmt.Errorf("lookup %s: no such host", addr)
}

func (f *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := f.hosts[host]; ok {
		return addrs, nil
	}
	return nil, fmt.Errorf("lookup %s: no such host", host)
}

// identityResolver answers every reverse lookup with a name derived from the
// address itself, for tests that don't care about hostnames.
type identityResolver struct{}

func (identityResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	return []string{"host-" + addr + ".example.com."}, nil
}

func (identityResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return []string{host}, nil
}

func newHostStatus(address string, port int, health string, weight int) HostStatus {
	return HostStatus{
		Address: Address{
			SocketAddress: SocketAddress{Address: address, PortValue: port},
		},
		HealthStatus: HealthStatus{EDSHealthStatus: health},
		Weight:       weight,
	}
}
