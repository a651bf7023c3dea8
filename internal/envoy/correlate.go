package envoy

import (
	"context"

	disterrors "github.com/ymilki/paasta/internal/errors"
	"github.com/ymilki/paasta/internal/scheduler"
)

// Correlate joins backends against scheduler tasks as a full outer join
// keyed on (resolved IP, port). Every backend appears in exactly one pair;
// every (task, port) combination appears in exactly one pair. A pair has
// both sides populated iff the backend's address and port equal the task's
// resolved IP and one of its ports.
//
// Matched pairs come out in task-then-port order; backends that matched no
// task follow, in their original order. A task host that fails to resolve
// aborts the whole call, keeping the same all-or-nothing posture as
// extraction.
func Correlate(ctx context.Context, backends []Backend, tasks []scheduler.Task, resolver Resolver) ([]CorrelationPair, error) {
	// Work on a private copy so the matched flag never leaks into the
	// caller's slice.
	owned := make([]Backend, len(backends))
	copy(owned, backends)

	byHostPort := make(map[HostPort][]*Backend)
	var keyOrder []HostPort
	for i := range owned {
		key := owned[i].HostPort()
		if _, seen := byHostPort[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		byHostPort[key] = append(byHostPort[key], &owned[i])
	}

	var pairs []CorrelationPair
	for i := range tasks {
		task := &tasks[i]
		ip, err := forwardLookup(ctx, resolver, task.Host)
		if err != nil {
			return nil, disterrors.New(disterrors.KindForwardDNS, "correlate", err).WithHost(task.Host)
		}
		for _, port := range task.Ports {
			key := HostPort{Address: ip, Port: port}
			matched, ok := byHostPort[key]
			if !ok {
				pairs = append(pairs, CorrelationPair{Task: task})
				continue
			}
			delete(byHostPort, key)
			for _, backend := range matched {
				backend.HasAssociatedTask = true
				pairs = append(pairs, CorrelationPair{Backend: backend, Task: task})
			}
		}
	}

	// Anything left in the map never matched a task.
	for _, key := range keyOrder {
		for _, backend := range byHostPort[key] {
			pairs = append(pairs, CorrelationPair{Backend: backend})
		}
	}
	return pairs, nil
}

// forwardLookup resolves a task host to its first IP address.
func forwardLookup(ctx context.Context, resolver Resolver, host string) (string, error) {
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", &noAddrError{host: host}
	}
	return addrs[0], nil
}

type noAddrError struct {
	host string
}

func (e *noAddrError) Error() string {
	return "no addresses for " + e.host
}
