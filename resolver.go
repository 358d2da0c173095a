package devproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// hostsPath is the platform endpoint that maps an app instance to its
// proxy host.
const hostsPath = "/box/srv/1.1/ide/apps/app/hosts"

// defaultResolveTimeout bounds the platform host lookup when the
// configuration does not set one.
const defaultResolveTimeout = 15 * time.Second

// Resolver determines the development proxy base URL for a configuration.
// Resolution is a single attempt; failures are not retried.
type Resolver interface {
	Resolve(ctx context.Context, cfg ProxyConfig) (string, error)
}

// ResolverFunc is a function adapter for Resolver.
type ResolverFunc func(ctx context.Context, cfg ProxyConfig) (string, error)

// Resolve calls the underlying function.
func (f ResolverFunc) Resolve(ctx context.Context, cfg ProxyConfig) (string, error) {
	return f(ctx, cfg)
}

// PlatformResolver resolves the proxy URL by asking the platform's host
// lookup endpoint with the configured credentials.
type PlatformResolver struct {
	// Client performs the lookup request. It must not be a client routed
	// through the intercepting transport. If nil, a plain client is used.
	Client *http.Client

	// Logger for resolution events. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewPlatformResolver creates a PlatformResolver with its own HTTP client.
func NewPlatformResolver() *PlatformResolver {
	return &PlatformResolver{
		Client: &http.Client{},
		Logger: slog.Default(),
	}
}

// hostsRequest is the lookup request body.
type hostsRequest struct {
	APIKey string `json:"apiKey"`
	GUID   string `json:"guid"`
}

// hostsResponse is the lookup response body.
type hostsResponse struct {
	Hosts struct {
		URL string `json:"url"`
	} `json:"hosts"`
	Error string `json:"error,omitempty"`
}

// Resolve implements Resolver. It POSTs the credentials to the platform
// and returns the proxy base URL from the response.
func (r *PlatformResolver) Resolve(ctx context.Context, cfg ProxyConfig) (string, error) {
	timeout := cfg.ResolveTimeout
	if timeout == 0 {
		timeout = defaultResolveTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := domainEndpoint(cfg.Domain)

	payload, err := json.Marshal(hostsRequest{
		APIKey: cfg.APIKey,
		GUID:   cfg.InstanceID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal hosts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build hosts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = &http.Client{}
	}

	r.logger().Debug("resolving proxy host", "endpoint", endpoint, "instance", cfg.InstanceID)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("platform host lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read host lookup response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("platform host lookup returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var hr hostsResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return "", fmt.Errorf("decode host lookup response: %w", err)
	}
	if hr.Error != "" {
		return "", fmt.Errorf("platform host lookup: %s", hr.Error)
	}
	if hr.Hosts.URL == "" {
		return "", fmt.Errorf("platform host lookup returned no url for instance %s", cfg.InstanceID)
	}

	if _, err := url.Parse(hr.Hosts.URL); err != nil {
		return "", fmt.Errorf("platform returned unparseable url %q: %w", hr.Hosts.URL, err)
	}

	r.logger().Info("resolved proxy host", "url", hr.Hosts.URL)
	return hr.Hosts.URL, nil
}

func (r *PlatformResolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// domainEndpoint builds the lookup URL from a configured domain, which may
// be a bare domain ("dev.example.com") or already carry a scheme.
func domainEndpoint(domain string) string {
	domain = strings.TrimSuffix(domain, "/")
	if strings.Contains(domain, "://") {
		return domain + hostsPath
	}
	return "https://" + domain + hostsPath
}
