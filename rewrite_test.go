package devproxy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestRewriter_Forced(t *testing.T) {
	tests := []struct {
		name       string
		proxy      string
		reqURL     string
		wantScheme string
		wantHost   string
	}{
		{
			name:       "http proxy keeps plain http",
			proxy:      "http://proxy.local:8080",
			reqURL:     "https://api.internal/v1/users",
			wantScheme: "http",
			wantHost:   "proxy.local:8080",
		},
		{
			name:       "https proxy upgrades http request",
			proxy:      "https://px.example.com",
			reqURL:     "http://api.internal/v1/users",
			wantScheme: "https",
			wantHost:   "px.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := NewRewriter(mustParse(t, tt.proxy), true, "key", "guid")
			req := httptest.NewRequest(http.MethodGet, tt.reqURL, nil)

			out := rw.Rewrite(req)

			if out.URL.Scheme != tt.wantScheme {
				t.Errorf("scheme = %q, want %q", out.URL.Scheme, tt.wantScheme)
			}
			if out.URL.Host != tt.wantHost {
				t.Errorf("host = %q, want %q", out.URL.Host, tt.wantHost)
			}
			if out.Host != tt.wantHost {
				t.Errorf("Host header = %q, want %q", out.Host, tt.wantHost)
			}
			if out.URL.Path != "/v1/users" {
				t.Errorf("path changed: %q", out.URL.Path)
			}

			// Forced mode leaves routing headers alone.
			for _, h := range []string{HeaderAPIKey, HeaderInstance, HeaderTarget, HeaderProtocol} {
				if v := out.Header.Get(h); v != "" {
					t.Errorf("unexpected header %s = %q", h, v)
				}
			}
		})
	}
}

func TestRewriter_Auto(t *testing.T) {
	rw := NewRewriter(mustParse(t, "https://px.example.com:8443"), false, "key-1", "guid-1")

	req := httptest.NewRequest(http.MethodPost, "http://api.internal:3000/v1/orders?limit=5", nil)
	req.Header.Set("Authorization", "Bearer tok")

	out := rw.Rewrite(req)

	// Scheme is forced to https no matter what the original used.
	if out.URL.Scheme != "https" {
		t.Errorf("scheme = %q, want https", out.URL.Scheme)
	}
	if out.URL.Host != "px.example.com:8443" {
		t.Errorf("host = %q, want px.example.com:8443", out.URL.Host)
	}
	if out.Host != "px.example.com" {
		t.Errorf("Host header = %q, want px.example.com", out.Host)
	}
	if out.URL.Path != "/v1/orders" || out.URL.RawQuery != "limit=5" {
		t.Errorf("path/query changed: %s?%s", out.URL.Path, out.URL.RawQuery)
	}

	headerTests := []struct {
		header string
		want   string
	}{
		{HeaderAPIKey, "key-1"},
		{HeaderInstance, "guid-1"},
		{HeaderTarget, "api.internal"},
		{HeaderProtocol, "http:"},
	}
	for _, tt := range headerTests {
		if got := out.Header.Get(tt.header); got != tt.want {
			t.Errorf("header %s = %q, want %q", tt.header, got, tt.want)
		}
	}

	// Pre-existing headers survive.
	if out.Header.Get("Authorization") != "Bearer tok" {
		t.Error("existing header lost in rewrite")
	}
}

func TestRewriter_Auto_HTTPSOriginal(t *testing.T) {
	rw := NewRewriter(mustParse(t, "https://px.example.com"), false, "k", "g")

	req := httptest.NewRequest(http.MethodGet, "https://auth.internal/token", nil)
	out := rw.Rewrite(req)

	if got := out.Header.Get(HeaderProtocol); got != "https:" {
		t.Errorf("protocol header = %q, want %q", got, "https:")
	}
	if got := out.Header.Get(HeaderTarget); got != "auth.internal" {
		t.Errorf("target header = %q, want %q", got, "auth.internal")
	}
}

func TestRewriter_OriginalUntouched(t *testing.T) {
	rw := NewRewriter(mustParse(t, "https://px.example.com"), false, "k", "g")

	req := httptest.NewRequest(http.MethodGet, "http://api.internal/v1", nil)
	_ = rw.Rewrite(req)

	if req.URL.Scheme != "http" || req.URL.Host != "api.internal" {
		t.Errorf("original request mutated: %s://%s", req.URL.Scheme, req.URL.Host)
	}
	if req.Header.Get(HeaderTarget) != "" {
		t.Error("headers injected on the original request")
	}
}

func BenchmarkRewrite(b *testing.B) {
	u, _ := url.Parse("https://px.example.com")
	rw := NewRewriter(u, false, "key", "guid")
	req := httptest.NewRequest(http.MethodGet, "http://api.internal/v1/users", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rw.Rewrite(req)
	}
}
