package handlers

import (
	"context"
	"net/http"
	"time"
)

const version = "0.1.0"

// Check is the outcome of one dependency probe.
type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health reports whether the memory log is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	memory := probe(ctx, h.memory)
	resp := HealthResponse{
		Status:    "healthy",
		Version:   version,
		Checks:    map[string]Check{"memory": memory},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if memory.Status != "pass" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.JSON(w, code, resp)
}

func probe(ctx context.Context, p Pinger) Check {
	if p == nil {
		return Check{Status: "fail", Message: "not configured"}
	}
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return Check{Status: "fail", Message: "connection failed"}
	}
	return Check{Status: "pass", Latency: time.Since(start).String()}
}
