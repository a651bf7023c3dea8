package envoy

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	disterrors "github.com/ymilki/paasta/internal/errors"
)

const (
	// adminServiceName is the well-known /etc/services entry for the
	// proxy admin interface.
	adminServiceName = "envoy-admin"

	clustersEndpoint = "clusters?format=json"

	defaultTimeout        = 1 * time.Second
	defaultConnectRetries = 3
	defaultUserAgent      = "meshmon"
	defaultURLFormat      = "http://%s:%d/%s"
)

// ClientConfig holds configuration for the admin client. The URL format
// receives host, port and endpoint in that order.
type ClientConfig struct {
	URLFormat      string
	Timeout        time.Duration
	ConnectRetries int
	UserAgent      string
}

// AdminClient fetches cluster state from a proxy's admin interface. The
// fetch sits inside a latency-sensitive polling loop, so the timeout budget
// is short and fixed at construction.
type AdminClient struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewAdminClient creates an admin client, filling config defaults.
func NewAdminClient(cfg ClientConfig) *AdminClient {
	if cfg.URLFormat == "" {
		cfg.URLFormat = defaultURLFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConnectRetries <= 0 {
		cfg.ConnectRetries = defaultConnectRetries
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &AdminClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchClusters retrieves and parses the admin /clusters view of one host.
// Connection-level failures are retried up to the configured budget; once a
// response body has been received there are no retries, and a body that does
// not match the expected schema is a terminal failure for this poll cycle.
func (c *AdminClient) FetchClusters(ctx context.Context, host string, port int) (*ClusterSnapshot, error) {
	uri := fmt.Sprintf(c.config.URLFormat, host, port, clustersEndpoint)

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt <= c.config.ConnectRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, disterrors.New(disterrors.KindInternal, "fetch_clusters", err).WithHost(host)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)

		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil {
			break
		}
		if isTimeout(ctx, lastErr) {
			return nil, disterrors.New(disterrors.KindTimeout, "fetch_clusters", lastErr).WithHost(host)
		}
		if !disterrors.IsConnectivity(lastErr) {
			// Not a connection-level failure (e.g. the caller cancelled),
			// so it must not surface as an unreachable admin endpoint.
			return nil, disterrors.New(disterrors.KindInternal, "fetch_clusters", lastErr).WithHost(host)
		}
		log.Debug().
			Str("host", host).
			Int("attempt", attempt+1).
			Err(lastErr).
			Msg("Admin endpoint connect failed, retrying")
	}
	if lastErr != nil {
		return nil, disterrors.New(disterrors.KindConnection, "fetch_clusters", lastErr).WithHost(host)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d from admin endpoint", resp.StatusCode)
		return nil, disterrors.New(disterrors.KindMalformed, "fetch_clusters", err).WithHost(host)
	}

	var snapshot ClusterSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, disterrors.New(disterrors.KindMalformed, "fetch_clusters", err).WithHost(host)
	}
	return &snapshot, nil
}

// isTimeout distinguishes the fetch budget being spent from a connect
// failure that still has retry budget left.
func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() == context.DeadlineExceeded {
		return true
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return true
	}
	return false
}

var lookupPortFn = net.LookupPort

// DiscoverAdminPort resolves the admin port through the system service
// database. Failure here is a distinct error kind from fetch failures so
// callers can tell misconfiguration apart from an unreachable proxy.
func DiscoverAdminPort() (int, error) {
	port, err := lookupPortFn("tcp", adminServiceName)
	if err != nil {
		return 0, disterrors.New(disterrors.KindPortLookup, "discover_admin_port", err)
	}
	return port, nil
}
