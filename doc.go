// Package devproxy transparently redirects outbound HTTP(S) requests for a
// configured set of hostnames through a remote development proxy.
//
// It exists so an application can be developed locally against backend hosts
// that are only reachable through a managed proxy tier, without changing the
// code that issues the requests. Redirected requests carry routing and
// authentication headers so the remote proxy can forward them to the real
// target.
//
// Basic usage:
//
//	proxy := devproxy.New()
//	err := proxy.Activate(context.Background(), devproxy.ProxyConfig{
//	    Hosts:      []string{"api.internal", "auth.internal"},
//	    APIKey:     "b0a9...",
//	    InstanceID: "8d2c...",
//	    Domain:     "dev.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer proxy.Reset()
//
//	// Requests through this client are redirected when their hostname
//	// matches; everything else passes through untouched.
//	client := proxy.Client()
//	resp, err := client.Get("https://api.internal/things")
//
// Callers that cannot be handed a client can install the intercepting
// transport process-wide:
//
//	proxy.Install()       // replaces http.DefaultTransport
//	defer proxy.Reset()   // restores the saved original
//
// When an explicit proxy URL is supplied, its scheme decides the outbound
// protocol (forced mode). When the proxy URL is resolved from platform
// credentials (auto mode), every redirected request is sent over HTTPS
// regardless of the original request's scheme.
package devproxy
