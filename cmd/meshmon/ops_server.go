package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/ymilki/paasta/internal/poller"
)

const opsDrainTimeout = 3 * time.Second

// hostHealth is one host's entry in the /healthz payload.
type hostHealth struct {
	OK        bool      `json:"ok"`
	SweepID   string    `json:"sweep_id,omitempty"`
	Backends  int       `json:"backends"`
	FetchedAt time.Time `json:"fetched_at"`
	Error     string    `json:"error,omitempty"`
}

// startOpsServer exposes prometheus metrics and a per-host health view of
// the latest sweep. It lives and dies with the daemon context.
func startOpsServer(ctx context.Context, addr string, store *poller.Store) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthzHandler(store))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), opsDrainTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("Ops server did not drain in time")
		}
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("Serving /metrics and /healthz")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("Ops server exited early")
		}
	}()
}

// healthzHandler reports the latest pass per host. The response is 200 only
// while every polled host has a current, error-free report; a host that has
// never been polled simply doesn't appear yet.
func healthzHandler(store *poller.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports := store.All()

		healthy := true
		body := make(map[string]hostHealth, len(reports))
		for host, report := range reports {
			entry := hostHealth{
				OK:        report.Err == nil,
				SweepID:   report.SweepID,
				Backends:  len(report.Backends),
				FetchedAt: report.FetchedAt,
			}
			if report.Err != nil {
				entry.Error = report.Err.Error()
				healthy = false
			}
			body[host] = entry
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Warn().Err(err).Msg("Failed to write healthz response")
		}
	}
}
