package devproxy

import (
	"sort"
	"testing"
)

func TestHostMatcher_NeedsProxy(t *testing.T) {
	m := NewHostMatcher("api.internal", "https://auth.internal:8443/login", "svc.example.com")

	tests := []struct {
		candidate string
		match     bool
	}{
		{"api.internal", true},
		{"auth.internal", true},
		{"svc.example.com", true},
		{"http://api.internal/v1/users", true},
		{"other.internal", false},
		{"API.INTERNAL", false}, // matching is case-sensitive
		{"sub.api.internal", false},
		{"internal", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := m.NeedsProxy(tt.candidate); got != tt.match {
			t.Errorf("NeedsProxy(%q) = %v, want %v", tt.candidate, got, tt.match)
		}
	}
}

func TestHostMatcher_AddRemove(t *testing.T) {
	m := NewHostMatcher()
	if m.Count() != 0 {
		t.Fatalf("expected empty matcher, got %d hosts", m.Count())
	}

	m.Add("api.internal")
	m.Add("http://cache.internal:6379")
	if m.Count() != 2 {
		t.Fatalf("expected 2 hosts, got %d", m.Count())
	}
	if !m.NeedsProxy("cache.internal") {
		t.Error("expected URL entry to match by hostname")
	}

	if !m.Remove("api.internal") {
		t.Error("expected Remove to report the host was present")
	}
	if m.Remove("api.internal") {
		t.Error("expected second Remove to report absence")
	}
	if m.NeedsProxy("api.internal") {
		t.Error("removed host still matches")
	}
}

func TestHostMatcher_Hosts(t *testing.T) {
	m := NewHostMatcher("b.internal", "a.internal")

	hosts := m.Hosts()
	sort.Strings(hosts)
	if len(hosts) != 2 || hosts[0] != "a.internal" || hosts[1] != "b.internal" {
		t.Errorf("unexpected host list: %v", hosts)
	}
}

func TestHostMatcher_DuplicateAdd(t *testing.T) {
	m := NewHostMatcher("api.internal", "api.internal", "https://api.internal")
	if m.Count() != 1 {
		t.Errorf("expected duplicates collapsed to 1 host, got %d", m.Count())
	}
}
