package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Base error types
var (
	ErrUnreachableAdmin   = errors.New("admin endpoint unreachable")
	ErrTimeout            = errors.New("timeout")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrHostnameResolution = errors.New("hostname resolution failed")
	ErrHostResolution     = errors.New("host resolution failed")
	ErrAdminPortLookup    = errors.New("admin port lookup failed")
)

// ErrorKind represents the category of error
type ErrorKind string

const (
	KindConnection ErrorKind = "connection"
	KindTimeout    ErrorKind = "timeout"
	KindMalformed  ErrorKind = "malformed"
	KindReverseDNS ErrorKind = "reverse_dns"
	KindForwardDNS ErrorKind = "forward_dns"
	KindPortLookup ErrorKind = "port_lookup"
	KindInternal   ErrorKind = "internal"
)

// DiscoveryError is a structured error for discovery and correlation operations
type DiscoveryError struct {
	Kind      ErrorKind
	Op        string // Operation that failed (e.g., "fetch_clusters", "correlate")
	Host      string // Host the operation targeted, if applicable
	Err       error  // Underlying error
	Timestamp time.Time
}

func (e *DiscoveryError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Op, e.Host, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *DiscoveryError) Is(target error) bool {
	if target == nil {
		return false
	}

	// Check base error types
	switch target {
	case ErrUnreachableAdmin:
		return e.Kind == KindConnection
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrMalformedResponse:
		return e.Kind == KindMalformed
	case ErrHostnameResolution:
		return e.Kind == KindReverseDNS
	case ErrHostResolution:
		return e.Kind == KindForwardDNS
	case ErrAdminPortLookup:
		return e.Kind == KindPortLookup
	}

	// Check wrapped error
	return errors.Is(e.Err, target)
}

// New creates a new DiscoveryError
func New(kind ErrorKind, op string, err error) *DiscoveryError {
	return &DiscoveryError{
		Kind:      kind,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithHost adds host information to the error
func (e *DiscoveryError) WithHost(host string) *DiscoveryError {
	e.Host = host
	return e
}

// Kind extraction helpers

// KindOf returns the error kind, or KindInternal for foreign errors
func KindOf(err error) ErrorKind {
	var de *DiscoveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsConnectivity reports whether an error indicates the endpoint itself is
// unreachable (TCP, DNS, dial failures). Application-level errors (HTTP
// responses received, parsing errors) mean the endpoint IS reachable.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "dial tcp") {
		return true
	}

	return false
}
