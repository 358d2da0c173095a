package devproxy

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// SecurePool owns the TLS-capable connection pool used for redirected
// requests. Auto-redirected requests always dispatch through this pool:
// higher-level request-building libraries sometimes substitute their own
// plain-transport pool when constructing options, and routing every
// rewritten request through here prevents a now-https request from silently
// leaving over a plain channel.
type SecurePool struct {
	// MaxIdleConns is the total maximum number of idle connections across
	// all hosts. Zero means the default (100).
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum number of idle connections kept
	// per host. Zero means the default (2).
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains pooled before
	// being closed. Zero means the default (90 seconds).
	IdleConnTimeout time.Duration

	// DialTimeout bounds TCP dials. Zero means the default (30 seconds).
	DialTimeout time.Duration

	// TLSHandshakeTimeout bounds TLS handshakes. Zero means the default
	// (10 seconds).
	TLSHandshakeTimeout time.Duration

	// TLSConfig provides custom TLS settings for connections to the dev
	// proxy (e.g. a private CA). If nil, defaults are used.
	TLSConfig *tls.Config

	// EnableHTTP2 negotiates h2 via ALPN with the dev proxy.
	EnableHTTP2 bool

	transport atomic.Pointer[http.Transport]

	totalRequests  atomic.Int64
	activeRequests atomic.Int64
}

// NewSecurePool creates a SecurePool with defaults suited to a redirected
// client workload: a single proxy endpoint receiving all matched traffic.
func NewSecurePool() *SecurePool {
	return &SecurePool{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		EnableHTTP2:         true,
	}
}

// Build creates the underlying [http.Transport]. It is safe to call again
// after changing fields; each call swaps in a fresh transport and closes
// idle connections on the previous one.
func (sp *SecurePool) Build() *http.Transport {
	tlsCfg := sp.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{}
	} else {
		tlsCfg = tlsCfg.Clone()
	}

	dialTimeout := sp.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 30 * time.Second
	}

	t := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     tlsCfg,
		MaxIdleConns:        sp.MaxIdleConns,
		MaxIdleConnsPerHost: sp.MaxIdleConnsPerHost,
		IdleConnTimeout:     sp.IdleConnTimeout,
		TLSHandshakeTimeout: sp.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   sp.EnableHTTP2,
	}

	if old := sp.transport.Swap(t); old != nil {
		old.CloseIdleConnections()
	}

	return t
}

// Transport returns an [http.RoundTripper] over the pool with request
// counting. [SecurePool.Build] is called automatically on first use.
func (sp *SecurePool) Transport() http.RoundTripper {
	if sp.transport.Load() == nil {
		sp.Build()
	}
	return &pooledRoundTripper{pool: sp}
}

// CloseIdleConnections closes all idle connections in the pool.
func (sp *SecurePool) CloseIdleConnections() {
	if t := sp.transport.Load(); t != nil {
		t.CloseIdleConnections()
	}
}

// Stats returns a snapshot of pool statistics.
func (sp *SecurePool) Stats() PoolStats {
	return PoolStats{
		TotalRequests:  sp.totalRequests.Load(),
		ActiveRequests: sp.activeRequests.Load(),
	}
}

// PoolStats holds a snapshot of connection pool statistics.
type PoolStats struct {
	TotalRequests  int64 `json:"total_requests"`
	ActiveRequests int64 `json:"active_requests"`
}

type pooledRoundTripper struct {
	pool *SecurePool
}

func (rt *pooledRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.pool.totalRequests.Add(1)
	rt.pool.activeRequests.Add(1)
	defer rt.pool.activeRequests.Add(-1)

	t := rt.pool.transport.Load()
	if t == nil {
		t = rt.pool.Build()
	}

	return t.RoundTrip(req)
}
