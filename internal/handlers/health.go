package handlers

import (
	"context"
	"net/http"
	"os"
	"time"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass", "fail" or "skip"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy", "degraded" or "unhealthy"
	Version   string           `json:"version"`
	RelayMode string           `json:"relay_mode"` // "canonical" or "in-process"
	Region    string           `json:"region,omitempty"`
	Instance  string           `json:"instance,omitempty"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

func runCheck(ctx context.Context, p pinger) Check {
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return Check{Status: "fail", Message: "connection failed"}
	}
	return Check{Status: "pass", Latency: time.Since(start).String()}
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]Check{
		"relay": runCheck(ctx, h.relay),
	}
	if h.data != nil {
		checks["database"] = runCheck(ctx, h.data)
	} else {
		checks["database"] = Check{Status: "skip", Message: "not configured"}
	}
	if h.redis != nil {
		checks["redis"] = runCheck(ctx, h.redis)
	} else {
		checks["redis"] = Check{Status: "skip", Message: "not configured"}
	}

	allHealthy := true
	for _, c := range checks {
		if c.Status == "fail" {
			allHealthy = false
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	mode := "canonical"
	if h.relay.Degraded() {
		// Still serving, from the in-process store.
		status = "degraded"
		mode = "in-process"
	}
	if !allHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Version:   version,
		RelayMode: mode,
		Region:    os.Getenv("FLY_REGION"),
		Instance:  os.Getenv("FLY_ALLOC_ID"),
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.JSON(w, statusCode, resp)
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// Root handles the API info endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:    "chatrelay",
		Version: version,
		Endpoints: []string{
			"POST /access",
			"GET /groups/{id}/messages",
			"POST /groups/{id}/messages",
			"GET /collections/{address}/preview",
			"GET /health",
			"GET /metrics",
		},
	})
}
