package devproxy

import (
	"net/http"
	"net/url"
)

// Header names injected on auto-redirected requests. The remote proxy keys
// on these to forward the request to its real target, so the names are part
// of the wire protocol.
const (
	// HeaderAPIKey carries the configured API key.
	HeaderAPIKey = "X-FH-Proxy-Api-Key"

	// HeaderInstance carries the configured app instance guid.
	HeaderInstance = "X-FH-Proxy-Instance"

	// HeaderTarget carries the original hostname the request was meant
	// for, so the proxy knows where to ultimately forward.
	HeaderTarget = "X-FH-Proxy-Target"

	// HeaderProtocol carries the original request's scheme ("http:" or
	// "https:"), so the proxy can pick the outbound protocol on its side.
	HeaderProtocol = "X-FH-Proxy-Protocol"
)

// Redirect modes, used in logs and metrics.
const (
	ModeForced      = "forced"
	ModeAuto        = "auto"
	ModePassthrough = "passthrough"
)

// Rewriter mutates a matched request so it reaches the development proxy
// instead of its original destination. The original request is never
// modified; Rewrite works on a clone.
//
// Two policies exist, selected at construction:
//
//   - Forced: destination host/port and scheme are taken from the explicit
//     proxy URL. The operator's protocol choice is obeyed even when it
//     downgrades to plain HTTP.
//   - Auto: destination host/port are taken from the resolved proxy URL but
//     the scheme is forced to https unconditionally, and the routing
//     headers ([HeaderAPIKey], [HeaderInstance], [HeaderTarget],
//     [HeaderProtocol]) are merged into the request.
type Rewriter struct {
	proxy      *url.URL
	forced     bool
	apiKey     string
	instanceID string
}

// NewRewriter creates a Rewriter targeting the given proxy base URL.
// When forced is false, apiKey and instanceID are injected on every
// rewritten request.
func NewRewriter(proxy *url.URL, forced bool, apiKey, instanceID string) *Rewriter {
	return &Rewriter{
		proxy:      proxy,
		forced:     forced,
		apiKey:     apiKey,
		instanceID: instanceID,
	}
}

// Mode returns [ModeForced] or [ModeAuto].
func (rw *Rewriter) Mode() string {
	if rw.forced {
		return ModeForced
	}
	return ModeAuto
}

// ProxyHost returns the host (with port, when present) requests are
// redirected to.
func (rw *Rewriter) ProxyHost() string {
	return rw.proxy.Host
}

// Rewrite returns a clone of req with its destination, protocol, and
// headers remapped per the active policy. Existing headers are preserved;
// only the routing headers are set.
func (rw *Rewriter) Rewrite(req *http.Request) *http.Request {
	origHost := req.URL.Hostname()
	origScheme := req.URL.Scheme

	out := req.Clone(req.Context())

	if rw.forced {
		out.URL.Scheme = rw.proxy.Scheme
		out.URL.Host = rw.proxy.Host
		out.Host = rw.proxy.Host
		return out
	}

	// Every auto-redirected request goes out over TLS, regardless of the
	// original scheme. The original scheme travels in a header instead.
	out.URL.Scheme = "https"
	out.URL.Host = rw.proxy.Host
	out.Host = rw.proxy.Hostname()

	out.Header.Set(HeaderAPIKey, rw.apiKey)
	out.Header.Set(HeaderInstance, rw.instanceID)
	out.Header.Set(HeaderTarget, origHost)
	out.Header.Set(HeaderProtocol, origScheme+":")

	return out
}
