package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// HealthCheck devolve nil quando a dependência responde.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	Checks    map[string]HealthCheck
	Backend   string
	StartTime time.Time
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Scheduler    string            `json:"scheduler"`
	Dependencies map[string]string `json:"dependencies"`
}

func NewHealthHandler(backend string, checks map[string]HealthCheck) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &HealthHandler{
		Checks:    checks,
		Backend:   backend,
		StartTime: time.Now(),
	}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			deps[name] = fmt.Sprintf("unhealthy: %v", err)
			status = "degraded"
			continue
		}
		deps[name] = "healthy"
	}

	code := http.StatusOK
	if status == "degraded" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:       status,
		Version:      "1.0.0",
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Scheduler:    h.Backend,
		Dependencies: deps,
	})
}
