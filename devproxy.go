package devproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// EnvPlatformPort is the environment variable the platform sets on apps it
// hosts. When present, the process is already running next to the backends
// it would otherwise proxy to, and Activate becomes a no-op success.
const EnvPlatformPort = "FH_PORT"

var (
	// ErrNotResolved is returned for matched requests issued while no
	// proxy URL is available: resolution failed, or the mapping was reset
	// while the request was waiting on it.
	ErrNotResolved = errors.New("devproxy: proxy url not resolved")

	// ErrAlreadyActive is returned by Activate when a mapping is already
	// active or resolving. At most one activation may be in flight;
	// call Reset first.
	ErrAlreadyActive = errors.New("devproxy: a mapping is already active")
)

// State is the lifecycle state of a Proxy.
type State int32

// Lifecycle states. Reset returns the proxy to StateInactive from any state.
const (
	// StateInactive means no mapping is installed; all requests pass
	// through untouched.
	StateInactive State = iota

	// StateValidating means Activate is checking the configuration.
	StateValidating

	// StateResolving means interception is installed and the proxy URL is
	// being resolved. Matched requests wait for resolution to finish.
	StateResolving

	// StateActive means the mapping is fully established.
	StateActive

	// StateFailed means resolution failed; interception is still
	// installed but matched requests fail fast until Reset or a corrected
	// Activate.
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateValidating:
		return "validating"
	case StateResolving:
		return "resolving"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// activation holds all state scoped to a single Activate call. Requests
// snapshot the current activation once, so a concurrent Reset never leaves
// them observing a half-cleared mapping.
type activation struct {
	cfg     ProxyConfig
	matcher *HostMatcher
	started time.Time

	// ready is closed exactly once, when resolution completes (either
	// way) or the activation is torn down.
	ready chan struct{}
	once  sync.Once

	// rewriter and err are written before ready closes and read only
	// after it.
	rewriter *Rewriter
	err      error
}

func (a *activation) complete(rw *Rewriter, err error) {
	a.once.Do(func() {
		a.rewriter = rw
		a.err = err
		close(a.ready)
	})
}

// Proxy owns the single process-wide mapping: configuration, host matcher,
// request rewriter, and the resolution lifecycle. The zero value is not
// usable; call [New].
//
// All collaborator fields are optional and must be set before the first
// Activate call.
type Proxy struct {
	// Logger for lifecycle events.
	Logger *slog.Logger

	// Resolver resolves the proxy URL in auto mode. Defaults to a
	// [PlatformResolver].
	Resolver Resolver

	// Metrics collects Prometheus metrics (optional).
	Metrics *Metrics

	// Trace logs per-request redirect decisions (optional).
	Trace *DecisionLogger

	// Pool is the secure connection pool all redirected requests dispatch
	// through. Defaults to [NewSecurePool].
	Pool *SecurePool

	// Base is the transport for passthrough requests from [Proxy.Transport]
	// and [Proxy.Client]. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	mu        sync.Mutex
	state     atomic.Int32
	current   atomic.Pointer[activation]
	saved     http.RoundTripper
	installed bool
}

// New creates an inactive Proxy with default collaborators.
func New() *Proxy {
	return &Proxy{
		Logger:   slog.Default(),
		Resolver: NewPlatformResolver(),
		Pool:     NewSecurePool(),
	}
}

// State returns the current lifecycle state.
func (p *Proxy) State() State {
	return State(p.state.Load())
}

func (p *Proxy) setState(s State) {
	p.state.Store(int32(s))
}

// Active reports whether a mapping is fully established.
func (p *Proxy) Active() bool {
	return p.State() == StateActive
}

// Matcher returns the live host matcher of the current activation, or nil
// when inactive. Hosts added or removed through it take effect on the next
// request.
func (p *Proxy) Matcher() *HostMatcher {
	act := p.current.Load()
	if act == nil {
		return nil
	}
	return act.matcher
}

// ProxyURL returns the effective proxy base URL, or "" before resolution
// completes.
func (p *Proxy) ProxyURL() string {
	act := p.current.Load()
	if act == nil {
		return ""
	}
	select {
	case <-act.ready:
	default:
		return ""
	}
	if act.rewriter == nil {
		return ""
	}
	return act.cfg.ProxyURL
}

// Mode returns [ModeForced] or [ModeAuto] once the mapping is established,
// and "" otherwise.
func (p *Proxy) Mode() string {
	act := p.current.Load()
	if act == nil {
		return ""
	}
	select {
	case <-act.ready:
	default:
		return ""
	}
	if act.rewriter == nil {
		return ""
	}
	return act.rewriter.Mode()
}

// Activate validates cfg, installs interception, and establishes the proxy
// URL. With an explicit ProxyURL it completes immediately in forced mode;
// otherwise it blocks until the [Resolver] succeeds or fails.
//
// Matched requests issued concurrently while resolution is in flight wait
// for it to finish rather than observing a half-initialized mapping;
// unmatched requests never wait.
//
// When [EnvPlatformPort] is set the process already runs on the platform,
// redirection would be redundant, and Activate reports success without
// installing anything.
//
// At most one activation may be in flight; a second call while one is
// active or resolving returns [ErrAlreadyActive]. After a resolution
// failure, Activate may be called again with a corrected configuration.
func (p *Proxy) Activate(ctx context.Context, cfg ProxyConfig) error {
	if os.Getenv(EnvPlatformPort) != "" {
		p.logger().Info("running on platform, proxying skipped", "env", EnvPlatformPort)
		return nil
	}

	p.mu.Lock()
	switch p.State() {
	case StateInactive, StateFailed:
	default:
		p.mu.Unlock()
		return ErrAlreadyActive
	}

	p.setState(StateValidating)
	if err := cfg.Validate(); err != nil {
		p.setState(StateInactive)
		p.current.Store(nil)
		p.mu.Unlock()
		return err
	}

	act := &activation{
		cfg:     cfg.Clone(),
		matcher: NewHostMatcher(cfg.Hosts...),
		started: time.Now(),
		ready:   make(chan struct{}),
	}
	p.current.Store(act)
	p.setState(StateResolving)
	p.mu.Unlock()

	if p.Metrics != nil {
		p.Metrics.SetHostCount(act.matcher.Count())
	}

	// Forced mode: the URL is known, resolution completes immediately.
	if act.cfg.ProxyURL != "" {
		u, err := url.Parse(act.cfg.ProxyURL)
		if err != nil {
			// Unreachable after Validate, kept as a guard.
			p.failActivation(act, err)
			return fmt.Errorf("%w: parse proxy_url: %v", ErrInvalidConfig, err)
		}
		act.complete(NewRewriter(u, true, act.cfg.APIKey, act.cfg.InstanceID), nil)
		p.finishActivation(act)
		p.logger().Info("proxying activated",
			"mode", ModeForced, "proxy", u.Host, "scheme", u.Scheme, "hosts", act.matcher.Count())
		return nil
	}

	resolver := p.Resolver
	if resolver == nil {
		resolver = NewPlatformResolver()
	}

	start := time.Now()
	raw, err := resolver.Resolve(ctx, act.cfg)
	if p.Metrics != nil {
		p.Metrics.RecordResolve(time.Since(start), err)
	}
	if err != nil {
		p.failActivation(act, err)
		p.logger().Error("proxy url resolution failed", "error", err)
		return fmt.Errorf("resolve proxy url: %w", err)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		err = fmt.Errorf("resolved url %q is not usable: %v", raw, err)
		p.failActivation(act, err)
		return err
	}

	act.cfg.ProxyURL = raw
	act.complete(NewRewriter(u, false, act.cfg.APIKey, act.cfg.InstanceID), nil)
	p.finishActivation(act)
	p.logger().Info("proxying activated",
		"mode", ModeAuto, "proxy", u.Host, "hosts", act.matcher.Count())
	return nil
}

// finishActivation marks the activation active unless it was reset while
// resolution was in flight.
func (p *Proxy) finishActivation(act *activation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.Load() != act {
		return
	}
	p.setState(StateActive)
	if p.Metrics != nil {
		p.Metrics.SetActive(true)
	}
}

// failActivation records a resolution failure. Interception stays
// installed: matched requests fail fast with the recorded error until
// Reset or a corrected Activate.
func (p *Proxy) failActivation(act *activation, cause error) {
	act.complete(nil, fmt.Errorf("%w: %v", ErrNotResolved, cause))
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.Load() != act {
		return
	}
	p.setState(StateFailed)
}

// Reset tears down the active mapping and restores the original transport
// saved by [Proxy.Install]. It is synchronous, always succeeds, and is safe
// to call when already inactive. Requests already dispatched are unaffected;
// matched requests still waiting on resolution are released with
// [ErrNotResolved].
func (p *Proxy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if act := p.current.Swap(nil); act != nil {
		act.complete(nil, fmt.Errorf("%w: mapping reset", ErrNotResolved))
	}

	if p.installed {
		http.DefaultTransport = p.saved
		p.saved = nil
		p.installed = false
	}

	p.setState(StateInactive)
	if p.Metrics != nil {
		p.Metrics.SetActive(false)
		p.Metrics.SetHostCount(0)
	}
	p.logger().Debug("proxying reset")
}

// ReadinessCheck returns a check suitable for [HealthChecker.ReadinessChecks]
// that passes once the mapping is fully established.
func (p *Proxy) ReadinessCheck() ReadinessCheck {
	return func() error {
		if st := p.State(); st != StateActive {
			return fmt.Errorf("mapping not established (state %s)", st)
		}
		return nil
	}
}

// Uptime returns how long the current activation has been in place, or zero
// when inactive.
func (p *Proxy) Uptime() time.Duration {
	act := p.current.Load()
	if act == nil {
		return 0
	}
	return time.Since(act.started)
}

func (p *Proxy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// secureTransport returns the round tripper for redirected requests.
func (p *Proxy) secureTransport() http.RoundTripper {
	if p.Pool == nil {
		p.mu.Lock()
		if p.Pool == nil {
			p.Pool = NewSecurePool()
		}
		p.mu.Unlock()
	}
	return p.Pool.Transport()
}
