package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bizsim/agegate/internal/config"
	"github.com/bizsim/agegate/internal/store"
)

var startTime = time.Now()

// HealthStatus represents the overall health status.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status      HealthStatus           `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Version     string                 `json:"version,omitempty"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Checks      map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one dependency's health.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthChecker is implemented by probeable dependencies.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// HealthHandler runs the configured checkers.
type HealthHandler struct {
	cfg      *config.Config
	checkers []HealthChecker
}

func NewHealthHandler(cfg *config.Config, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{cfg: cfg, checkers: checkers}
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:      HealthStatusHealthy,
		Timestamp:   time.Now().UTC(),
		Version:     h.cfg.Version,
		Environment: h.cfg.Env,
		Uptime:      time.Since(startTime).String(),
		Checks:      make(map[string]CheckResult),
	}

	for _, checker := range h.checkers {
		start := time.Now()
		result := checker.Check(ctx)
		result.Latency = time.Since(start).String()
		response.Checks[checker.Name()] = result
		if result.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		}
	}

	status := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeJSON(w, status, response)
}

// LivenessHandler handles the /livez endpoint.
func (h *HealthHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "live - uptime: %s\n", time.Since(startTime).String())
}

// StorageHealthChecker probes the cache store with a read of the flag key.
type StorageHealthChecker struct {
	Store store.FlagStore
}

func (s *StorageHealthChecker) Name() string { return "storage" }

func (s *StorageHealthChecker) Check(ctx context.Context) CheckResult {
	if _, err := s.Store.Load(ctx); err != nil {
		return CheckResult{
			Status: HealthStatusUnhealthy,
			Error:  fmt.Sprintf("load failed: %v", err),
		}
	}
	return CheckResult{Status: HealthStatusHealthy, Message: "storage reachable"}
}
