package poller

import (
	"sync"
	"time"

	"github.com/ymilki/paasta/internal/envoy"
)

// HostReport is the outcome of one fetch-and-correlate pass against one
// proxy host. Either Err is set, or Backends and Pairs hold a complete,
// internally consistent result; there are no partial reports.
type HostReport struct {
	Host      string
	SweepID   string
	Backends  []envoy.Backend
	Pairs     []envoy.CorrelationPair
	FetchedAt time.Time
	Err       error
}

// Store keeps the latest report per host. Each pass owns its own snapshot
// and intermediate sets, so the store is the only shared state between
// sweeps.
type Store struct {
	mu      sync.RWMutex
	reports map[string]HostReport
}

func NewStore() *Store {
	return &Store{reports: make(map[string]HostReport)}
}

func (s *Store) Put(report HostReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.Host] = report
}

// Latest returns the most recent report for a host.
func (s *Store) Latest(host string) (HostReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[host]
	return report, ok
}

// All returns a copy of the latest report for every host.
func (s *Store) All() map[string]HostReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]HostReport, len(s.reports))
	for host, report := range s.reports {
		out[host] = report
	}
	return out
}
