package poller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ymilki/paasta/internal/envoy"
	disterrors "github.com/ymilki/paasta/internal/errors"
	"github.com/ymilki/paasta/internal/scheduler"
)

// Config controls the poll engine.
type Config struct {
	Hosts       []string
	AdminPort   int
	Services    []string
	Interval    time.Duration
	Concurrency int
}

// Poller sweeps the configured proxy hosts on an interval. Per sweep it
// runs one self-contained fetch-and-correlate pass per host, bounded by the
// concurrency limit; passes share no mutable state with each other and only
// the report store outlives a sweep.
type Poller struct {
	config   Config
	client   *envoy.AdminClient
	resolver envoy.Resolver
	provider scheduler.TaskProvider
	store    *Store
	filter   envoy.ServiceFilter
	metrics  *Metrics
}

// New creates a poller writing into the given store.
func New(cfg Config, client *envoy.AdminClient, resolver envoy.Resolver, provider scheduler.TaskProvider, store *Store) *Poller {
	return &Poller{
		config:   cfg,
		client:   client,
		resolver: resolver,
		provider: provider,
		store:    store,
		filter:   envoy.NewServiceFilter(cfg.Services...),
		metrics:  GetMetrics(),
	}
}

// Run sweeps immediately, then on every interval tick until the context is
// cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			p.sweep(ctx)
		case <-ctx.Done():
			log.Info().Msg("Poller shutting down")
			return nil
		}
	}
}

// Sweep runs a single pass over every configured host. Exposed for one-shot
// invocations.
func (p *Poller) Sweep(ctx context.Context) {
	p.sweep(ctx)
}

func (p *Poller) sweep(ctx context.Context) {
	sweepID := uuid.NewString()
	logger := log.With().Str("sweep_id", sweepID).Logger()
	p.metrics.sweepsTotal.Inc()

	tasks, err := p.provider.Tasks(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Task provider failed, skipping sweep")
		return
	}

	started := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, host := range p.config.Hosts {
		host := host
		g.Go(func() error {
			report := p.pollHost(ctx, logger, host, tasks)
			report.SweepID = sweepID
			p.store.Put(report)
			return nil
		})
	}
	_ = g.Wait()

	logger.Debug().
		Int("hosts", len(p.config.Hosts)).
		Int("tasks", len(tasks)).
		Dur("elapsed", time.Since(started)).
		Msg("Sweep complete")
}

// pollHost is one self-contained fetch-and-correlate pass. It never returns
// a partial result: on any failure the report carries only the error.
func (p *Poller) pollHost(ctx context.Context, logger zerolog.Logger, host string, tasks []scheduler.Task) HostReport {
	report := HostReport{Host: host, FetchedAt: time.Now()}

	fetchStart := time.Now()
	snapshot, err := p.client.FetchClusters(ctx, host, p.config.AdminPort)
	p.metrics.fetchDuration.WithLabelValues(host).Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		return p.failed(logger, report, err)
	}

	casperEndpoints := envoy.CasperEndpoints(snapshot)
	backends, err := envoy.ExtractBackends(ctx, snapshot, casperEndpoints, p.filter, p.resolver)
	if err != nil {
		return p.failed(logger, report, err)
	}

	pairs, err := envoy.Correlate(ctx, backends, tasks, p.resolver)
	if err != nil {
		return p.failed(logger, report, err)
	}

	matched := 0
	for _, pair := range pairs {
		if pair.Backend != nil && pair.Task != nil {
			matched++
		}
	}
	p.metrics.liveBackends.WithLabelValues(host).Set(float64(len(backends)))
	p.metrics.matchedPairs.WithLabelValues(host).Set(float64(matched))

	logger.Debug().
		Str("host", host).
		Int("backends", len(backends)).
		Int("pairs", len(pairs)).
		Int("matched", matched).
		Msg("Pass complete")

	report.Backends = backends
	report.Pairs = pairs
	return report
}

func (p *Poller) failed(logger zerolog.Logger, report HostReport, err error) HostReport {
	kind := disterrors.KindOf(err)
	p.metrics.hostErrors.WithLabelValues(report.Host, string(kind)).Inc()
	logger.Warn().
		Str("host", report.Host).
		Str("kind", string(kind)).
		Err(err).
		Msg("Pass failed")
	report.Err = err
	return report
}
