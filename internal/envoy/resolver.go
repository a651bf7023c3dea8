package envoy

import "context"

// Resolver covers the DNS lookups performed during extraction (reverse
// lookup of backend addresses) and correlation (forward lookup of task
// hosts). *dnscache.Resolver satisfies it, which keeps lookups cached
// across a sweep of many hosts.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) (names []string, err error)
	LookupHost(ctx context.Context, host string) (addrs []string, err error)
}
