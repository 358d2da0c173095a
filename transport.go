package devproxy

import (
	"net/http"
	"time"
)

// Transport returns an [http.RoundTripper] that redirects matched requests
// through the development proxy and dispatches everything else on the base
// transport unmodified. The returned transport is valid for the lifetime of
// the Proxy and reflects Activate/Reset transitions as they happen.
func (p *Proxy) Transport() http.RoundTripper {
	base := p.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return &interceptTransport{proxy: p, base: base}
}

// Client returns an [*http.Client] wired with [Proxy.Transport]. This is
// the preferred integration point: hand this client to code that issues
// outbound requests.
func (p *Proxy) Client() *http.Client {
	return &http.Client{Transport: p.Transport()}
}

// Install replaces http.DefaultTransport with the intercepting transport,
// for callers that cannot be reconfigured with [Proxy.Client]. The original
// transport is saved and restored by [Proxy.Reset]. Install is idempotent.
func (p *Proxy) Install() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.installed {
		return
	}
	p.saved = http.DefaultTransport
	http.DefaultTransport = &interceptTransport{proxy: p, base: p.saved}
	p.installed = true
	p.logger().Debug("intercepting transport installed process-wide")
}

// interceptTransport is the wrapper every outbound request passes through.
// It is a pure function of the current activation and the request: no state
// is mutated outside Activate/Reset, so concurrent requests proceed fully
// in parallel.
type interceptTransport struct {
	proxy *Proxy
	base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *interceptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	act := t.proxy.current.Load()
	if act == nil {
		return t.base.RoundTrip(req)
	}

	host := req.URL.Hostname()
	if !act.matcher.NeedsProxy(host) {
		t.record(ModePassthrough)
		t.trace(DecisionEntry{
			Timestamp: time.Now(),
			Method:    req.Method,
			Host:      host,
			Path:      req.URL.Path,
			Scheme:    req.URL.Scheme,
			Mode:      ModePassthrough,
		})
		return t.base.RoundTrip(req)
	}

	// Matched while resolution is still in flight: wait rather than
	// rewriting against an empty proxy URL.
	select {
	case <-act.ready:
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
	if act.err != nil {
		return nil, act.err
	}

	out := act.rewriter.Rewrite(req)
	mode := act.rewriter.Mode()
	t.record(mode)

	start := time.Now()
	resp, err := t.proxy.secureTransport().RoundTrip(out)

	entry := DecisionEntry{
		Timestamp: start,
		Method:    req.Method,
		Host:      host,
		Path:      req.URL.Path,
		Scheme:    req.URL.Scheme,
		Mode:      mode,
		ProxyHost: act.rewriter.ProxyHost(),
		Duration:  time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Status = resp.StatusCode
		if t.proxy.Metrics != nil {
			t.proxy.Metrics.RecordRedirect(mode, resp.StatusCode, time.Since(start))
		}
	}
	t.trace(entry)
	if err == nil && t.proxy.Trace != nil {
		t.proxy.Trace.DumpBody(req, resp)
	}

	return resp, err
}

func (t *interceptTransport) record(mode string) {
	if t.proxy.Metrics != nil {
		t.proxy.Metrics.RecordRequest(mode)
	}
}

func (t *interceptTransport) trace(e DecisionEntry) {
	if t.proxy.Trace != nil {
		t.proxy.Trace.Log(e)
	}
}
