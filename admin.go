package devproxy

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AdminAPI provides REST endpoints for inspecting and adjusting the active
// mapping at runtime: viewing status, listing hosts, adding and removing
// hosts, and resetting the mapping. It is mounted on the debug server under
// a configurable path prefix (default "/api") and uses [chi] for routing.
//
// All endpoints return JSON. Host mutations apply to the live matcher and
// take effect on the next request.
type AdminAPI struct {
	// Proxy is the proxy instance to manage.
	Proxy *Proxy

	// Logger for admin API events.
	Logger *slog.Logger

	// PathPrefix is the URL path prefix for admin routes (default "/api").
	PathPrefix string

	router chi.Router
}

// NewAdminAPI creates an AdminAPI wired to the given proxy.
func NewAdminAPI(proxy *Proxy) *AdminAPI {
	a := &AdminAPI{
		Proxy:      proxy,
		Logger:     slog.Default(),
		PathPrefix: "/api",
	}
	a.buildRouter()
	return a
}

func (a *AdminAPI) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/status", a.handleStatus)
	r.Get("/hosts", a.handleListHosts)
	r.Post("/hosts", a.handleAddHost)
	r.Delete("/hosts", a.handleRemoveHost)
	r.Post("/reset", a.handleReset)

	a.router = r
}

// Handler returns the admin routes without any prefix, suitable for
// mounting on an existing router.
func (a *AdminAPI) Handler() http.Handler {
	return a.router
}

// ServeHTTP implements http.Handler for standalone use, stripping
// PathPrefix before routing.
func (a *AdminAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.StripPrefix(a.PathPrefix, a.router).ServeHTTP(w, r)
}

// --------------------------------------------------------------------------
// Response types
// --------------------------------------------------------------------------

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	State     string    `json:"state"`
	Mode      string    `json:"mode,omitempty"`
	ProxyURL  string    `json:"proxy_url,omitempty"`
	HostCount int       `json:"host_count"`
	Uptime    string    `json:"uptime,omitempty"`
	Pool      PoolStats `json:"pool"`
}

// HostsResponse is returned by GET /api/hosts.
type HostsResponse struct {
	Count int      `json:"count"`
	Hosts []string `json:"hosts"`
}

// HostRequest is the body for POST /api/hosts and DELETE /api/hosts.
type HostRequest struct {
	Host string `json:"host"`
}

// ErrorResponse is returned for error conditions.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is returned for successful mutations.
type MessageResponse struct {
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (a *AdminAPI) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		State:    a.Proxy.State().String(),
		Mode:     a.Proxy.Mode(),
		ProxyURL: a.Proxy.ProxyURL(),
	}
	if m := a.Proxy.Matcher(); m != nil {
		resp.HostCount = m.Count()
	}
	if up := a.Proxy.Uptime(); up > 0 {
		resp.Uptime = up.Truncate(time.Second).String()
	}
	if a.Proxy.Pool != nil {
		resp.Pool = a.Proxy.Pool.Stats()
	}

	a.writeJSON(w, http.StatusOK, resp)
}

func (a *AdminAPI) handleListHosts(w http.ResponseWriter, _ *http.Request) {
	m := a.Proxy.Matcher()
	if m == nil {
		a.writeJSON(w, http.StatusOK, HostsResponse{Count: 0, Hosts: []string{}})
		return
	}

	hosts := m.Hosts()
	sort.Strings(hosts)
	a.writeJSON(w, http.StatusOK, HostsResponse{Count: len(hosts), Hosts: hosts})
}

func (a *AdminAPI) handleAddHost(w http.ResponseWriter, r *http.Request) {
	m := a.Proxy.Matcher()
	if m == nil {
		a.writeJSON(w, http.StatusConflict, ErrorResponse{Error: "no active mapping"})
		return
	}

	req, ok := a.decodeHost(w, r)
	if !ok {
		return
	}

	m.Add(req.Host)
	if a.Proxy.Metrics != nil {
		a.Proxy.Metrics.SetHostCount(m.Count())
	}
	a.Logger.Info("host added via admin API", "host", req.Host)
	a.writeJSON(w, http.StatusCreated, MessageResponse{Message: "host added"})
}

func (a *AdminAPI) handleRemoveHost(w http.ResponseWriter, r *http.Request) {
	m := a.Proxy.Matcher()
	if m == nil {
		a.writeJSON(w, http.StatusConflict, ErrorResponse{Error: "no active mapping"})
		return
	}

	req, ok := a.decodeHost(w, r)
	if !ok {
		return
	}

	if !m.Remove(req.Host) {
		a.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "host not found"})
		return
	}
	if a.Proxy.Metrics != nil {
		a.Proxy.Metrics.SetHostCount(m.Count())
	}
	a.Logger.Info("host removed via admin API", "host", req.Host)
	a.writeJSON(w, http.StatusOK, MessageResponse{Message: "host removed"})
}

func (a *AdminAPI) handleReset(w http.ResponseWriter, _ *http.Request) {
	a.Proxy.Reset()
	a.Logger.Info("mapping reset via admin API")
	a.writeJSON(w, http.StatusOK, MessageResponse{Message: "mapping reset"})
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (a *AdminAPI) decodeHost(w http.ResponseWriter, r *http.Request) (HostRequest, bool) {
	var req HostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return req, false
	}
	if req.Host == "" {
		a.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "host is required"})
		return req, false
	}
	return req, true
}

func (a *AdminAPI) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Logger.Error("admin API write error", "error", err)
	}
}
