package devproxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// hostsServer runs a fake platform host lookup endpoint.
func hostsServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	// Method-qualified patterns ("POST /path") need Go 1.22+; enforce the
	// POST restriction by hand so this runs on a 1.21 toolchain.
	mux.HandleFunc(hostsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPlatformResolver_Resolve(t *testing.T) {
	srv := hostsServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req hostsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.APIKey != "key-1" {
			t.Errorf("apiKey = %q, want key-1", req.APIKey)
		}
		if req.GUID != "guid-1" {
			t.Errorf("guid = %q, want guid-1", req.GUID)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"hosts": map[string]string{"url": "https://proxy-guid-1.apps.example.com"},
		})
	})

	r := NewPlatformResolver()
	r.Logger = discardLogger()

	got, err := r.Resolve(context.Background(), ProxyConfig{
		APIKey:     "key-1",
		InstanceID: "guid-1",
		Domain:     srv.URL,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "https://proxy-guid-1.apps.example.com" {
		t.Errorf("resolved url = %q", got)
	}
}

func TestPlatformResolver_ErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantSub string
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			},
			wantSub: "401",
		},
		{
			name: "error field in body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"error": "no such instance"})
			},
			wantSub: "no such instance",
		},
		{
			name: "missing url",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"hosts": map[string]string{}})
			},
			wantSub: "no url",
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				io.WriteString(w, "{not json")
			},
			wantSub: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := hostsServer(t, tt.handler)

			r := NewPlatformResolver()
			r.Logger = discardLogger()

			_, err := r.Resolve(context.Background(), ProxyConfig{
				APIKey:     "k",
				InstanceID: "g",
				Domain:     srv.URL,
			})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestPlatformResolver_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // resolve against a dead server

	r := NewPlatformResolver()
	r.Logger = discardLogger()

	_, err := r.Resolve(context.Background(), ProxyConfig{
		APIKey:     "k",
		InstanceID: "g",
		Domain:     srv.URL,
	})
	if err == nil {
		t.Fatal("expected error for unreachable platform")
	}
}

func TestPlatformResolver_Timeout(t *testing.T) {
	srv := hostsServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	r := NewPlatformResolver()
	r.Logger = discardLogger()

	start := time.Now()
	_, err := r.Resolve(context.Background(), ProxyConfig{
		APIKey:         "k",
		InstanceID:     "g",
		Domain:         srv.URL,
		ResolveTimeout: 50 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("resolve did not honor timeout, took %v", elapsed)
	}
}

func TestDomainEndpoint(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"dev.example.com", "https://dev.example.com" + hostsPath},
		{"dev.example.com/", "https://dev.example.com" + hostsPath},
		{"https://dev.example.com", "https://dev.example.com" + hostsPath},
		{"http://localhost:9000", "http://localhost:9000" + hostsPath},
	}

	for _, tt := range tests {
		if got := domainEndpoint(tt.domain); got != tt.want {
			t.Errorf("domainEndpoint(%q) = %q, want %q", tt.domain, got, tt.want)
		}
	}
}
