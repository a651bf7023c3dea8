package envoy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	disterrors "github.com/ymilki/paasta/internal/errors"
)

const clustersBody = `{
	"cluster_statuses": [
		{
			"name": "web.egress_cluster",
			"host_statuses": [
				{
					"address": {"socket_address": {"address": "10.0.0.1", "port_value": 8080}},
					"health_status": {"eds_health_status": "HEALTHY"},
					"weight": 10
				}
			]
		},
		{"name": "empty.egress_cluster"}
	]
}`

func splitTestServer(t *testing.T, srv *httptest.Server) (string, int) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func TestFetchClusters(t *testing.T) {
	var userAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		assert.Equal(t, "/clusters", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(clustersBody))
	}))
	defer srv.Close()
	host, port := splitTestServer(t, srv)

	client := NewAdminClient(ClientConfig{})
	snapshot, err := client.FetchClusters(context.Background(), host, port)
	require.NoError(t, err)

	require.Len(t, snapshot.ClusterStatuses, 2)
	assert.Equal(t, "web.egress_cluster", snapshot.ClusterStatuses[0].Name)
	require.Len(t, snapshot.ClusterStatuses[0].HostStatuses, 1)
	hs := snapshot.ClusterStatuses[0].HostStatuses[0]
	assert.Equal(t, "10.0.0.1", hs.Address.SocketAddress.Address)
	assert.Equal(t, 8080, hs.Address.SocketAddress.PortValue)
	assert.Equal(t, "HEALTHY", hs.HealthStatus.EDSHealthStatus)
	assert.Equal(t, 10, hs.Weight)
	assert.Empty(t, snapshot.ClusterStatuses[1].HostStatuses)

	assert.Equal(t, defaultUserAgent, userAgent.Load())
}

func TestFetchClustersMalformedBodyNoRetry(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte("not json at all"))
	}))
	defer srv.Close()
	host, port := splitTestServer(t, srv)

	client := NewAdminClient(ClientConfig{})
	snapshot, err := client.FetchClusters(context.Background(), host, port)

	require.Error(t, err)
	assert.True(t, errors.Is(err, disterrors.ErrMalformedResponse))
	assert.Nil(t, snapshot)
	// A received body is terminal for the cycle, never retried.
	assert.Equal(t, int32(1), requests.Load())
}

func TestFetchClustersUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "admin restarting", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	host, port := splitTestServer(t, srv)

	client := NewAdminClient(ClientConfig{})
	_, err := client.FetchClusters(context.Background(), host, port)

	require.Error(t, err)
	assert.True(t, errors.Is(err, disterrors.ErrMalformedResponse))
}

func TestFetchClustersUnreachable(t *testing.T) {
	// Reserve a port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	client := NewAdminClient(ClientConfig{Timeout: 500 * time.Millisecond})
	_, err = client.FetchClusters(context.Background(), "127.0.0.1", port)

	require.Error(t, err)
	assert.True(t, errors.Is(err, disterrors.ErrUnreachableAdmin))
}

func TestFetchClustersTimeout(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()
	host, port := splitTestServer(t, srv)

	client := NewAdminClient(ClientConfig{Timeout: 50 * time.Millisecond})
	_, err := client.FetchClusters(context.Background(), host, port)

	require.Error(t, err)
	assert.True(t, errors.Is(err, disterrors.ErrTimeout))
}

func TestFetchClustersCanceledContextNotUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(clustersBody))
	}))
	defer srv.Close()
	host, port := splitTestServer(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewAdminClient(ClientConfig{})
	_, err := client.FetchClusters(ctx, host, port)

	require.Error(t, err)
	// Caller cancellation is not a connection-level failure.
	assert.False(t, errors.Is(err, disterrors.ErrUnreachableAdmin))
	assert.False(t, errors.Is(err, disterrors.ErrTimeout))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDiscoverAdminPort(t *testing.T) {
	orig := lookupPortFn
	defer func() { lookupPortFn = orig }()

	lookupPortFn = func(network, service string) (int, error) {
		assert.Equal(t, "tcp", network)
		assert.Equal(t, adminServiceName, service)
		return 9901, nil
	}

	port, err := DiscoverAdminPort()
	require.NoError(t, err)
	assert.Equal(t, 9901, port)
}

func TestDiscoverAdminPortUnknownService(t *testing.T) {
	orig := lookupPortFn
	defer func() { lookupPortFn = orig }()

	lookupPortFn = func(network, service string) (int, error) {
		return 0, &net.AddrError{Err: "unknown port", Addr: "tcp/" + service}
	}

	port, err := DiscoverAdminPort()
	require.Error(t, err)
	assert.True(t, errors.Is(err, disterrors.ErrAdminPortLookup))
	assert.Zero(t, port)
}

func TestNewAdminClientDefaults(t *testing.T) {
	client := NewAdminClient(ClientConfig{})

	assert.Equal(t, defaultURLFormat, client.config.URLFormat)
	assert.Equal(t, defaultTimeout, client.config.Timeout)
	assert.Equal(t, defaultConnectRetries, client.config.ConnectRetries)
	assert.Equal(t, defaultUserAgent, client.config.UserAgent)
}
