package devproxy

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker provides liveness and readiness probes for the debug
// server. Liveness passes whenever the process is serving; readiness runs
// the configured checks, typically [Proxy.ReadinessCheck] so tooling can
// wait for the mapping to be established.
type HealthChecker struct {
	startTime time.Time

	// ReadinessChecks must all return nil for the readiness probe to
	// pass. If empty, readiness follows liveness.
	ReadinessChecks []ReadinessCheck
}

// ReadinessCheck returns nil if the component is ready, or an error
// describing why it is not.
type ReadinessCheck func() error

// HealthResponse is the JSON body returned by health endpoints.
type HealthResponse struct {
	Status  string   `json:"status"`
	Uptime  string   `json:"uptime,omitempty"`
	Details []string `json:"details,omitempty"`
}

// NewHealthChecker creates a HealthChecker.
func NewHealthChecker(checks ...ReadinessCheck) *HealthChecker {
	return &HealthChecker{
		startTime:       time.Now(),
		ReadinessChecks: checks,
	}
}

// HandleHealthz handles the /healthz liveness probe endpoint.
func (h *HealthChecker) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
	})
}

// HandleReadyz handles the /readyz readiness probe endpoint.
func (h *HealthChecker) HandleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	resp := HealthResponse{
		Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
	}

	var failures []string
	for _, check := range h.ReadinessChecks {
		if err := check(); err != nil {
			failures = append(failures, err.Error())
		}
	}

	if len(failures) > 0 {
		resp.Status = "not ready"
		resp.Details = failures
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		resp.Status = "ok"
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(resp)
}
