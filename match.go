package devproxy

import (
	"net/url"
	"strings"
	"sync"
)

// HostMatcher decides whether a hostname is one of the configured hosts
// needing redirection. Matching is exact and case-sensitive; there is no
// wildcard or subdomain matching. Entries and candidates may be given as
// full URLs, in which case the hostname is extracted first.
type HostMatcher struct {
	mu    sync.RWMutex
	hosts map[string]bool
}

// NewHostMatcher creates a matcher over the given hosts.
func NewHostMatcher(hosts ...string) *HostMatcher {
	m := &HostMatcher{
		hosts: make(map[string]bool, len(hosts)),
	}
	for _, h := range hosts {
		m.Add(h)
	}
	return m
}

// Add registers a host. The entry may be a bare hostname or a URL.
// Add is safe for concurrent use.
func (m *HostMatcher) Add(host string) {
	h := normalizeHost(host)
	if h == "" {
		return
	}
	m.mu.Lock()
	m.hosts[h] = true
	m.mu.Unlock()
}

// Remove deletes a host, reporting whether it was present.
// Remove is safe for concurrent use.
func (m *HostMatcher) Remove(host string) bool {
	h := normalizeHost(host)
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hosts[h] {
		return false
	}
	delete(m.hosts, h)
	return true
}

// Hosts returns the normalized hostnames currently configured.
func (m *HostMatcher) Hosts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.hosts))
	for h := range m.hosts {
		out = append(out, h)
	}
	return out
}

// Count returns the number of configured hosts.
func (m *HostMatcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hosts)
}

// NeedsProxy reports whether the candidate hostname (or URL) matches a
// configured host. It is a pure membership test over the current host set.
func (m *HostMatcher) NeedsProxy(candidate string) bool {
	h := normalizeHost(candidate)
	if h == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hosts[h]
}

// normalizeHost extracts the hostname from a URL-shaped string, or returns
// the string verbatim when it does not look like a URL.
func normalizeHost(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return s
	}
	return u.Hostname()
}
