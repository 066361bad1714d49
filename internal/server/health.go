package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health represents the complete health check response
type Health struct {
	Status       HealthStatus               `json:"status"`
	Environment  string                     `json:"environment"`
	UploadDir    string                     `json:"uploadDir"`
	FormattedDir string                     `json:"formattedDir"`
	Timestamp    time.Time                  `json:"timestamp"`
	Version      string                     `json:"version,omitempty"`
	Components   map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`
}

const (
	healthCheckTimeout = 5 * time.Second
	slowCheck          = time.Second
)

// HandleHealth provides a detailed health check endpoint
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// HandleReady reports whether the service can take find-common requests.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "staging unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// HandleLive provides a liveness probe (is the process running?)
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

// checkHealth performs health checks on all components
func (s *Server) checkHealth(ctx context.Context) Health {
	desc := s.store.Describe()
	health := Health{
		Environment:  s.cfg.Env,
		UploadDir:    desc["uploadDir"],
		FormattedDir: desc["formattedDir"],
		Timestamp:    s.now().UTC(),
		Version:      s.cfg.Version,
		Components:   make(map[string]ComponentHealth),
	}

	health.Components["staging"] = s.checkStagingHealth(ctx, desc)
	if s.runs != nil {
		health.Components["database"] = s.checkDatabaseHealth(ctx)
	}

	health.Status = determineOverallHealth(health.Components)
	return health
}

// checkStagingHealth verifies the staging backend accepts writes.
func (s *Server) checkStagingHealth(ctx context.Context, desc map[string]string) ComponentHealth {
	start := s.now()
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := s.store.Check(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "staging check failed: " + err.Error(),
			Details: desc,
		}
	}

	return latencyHealth("staging", s.now().Sub(start), desc)
}

// checkDatabaseHealth checks PostgreSQL connectivity
func (s *Server) checkDatabaseHealth(ctx context.Context) ComponentHealth {
	start := s.now()
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := s.runs.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "database ping failed: " + err.Error(),
		}
	}

	return latencyHealth("database", s.now().Sub(start), nil)
}

func latencyHealth(name string, latency time.Duration, details any) ComponentHealth {
	h := ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   name + " healthy",
		LatencyMs: float64(latency.Milliseconds()),
		Details:   details,
	}
	if latency > slowCheck {
		h.Status = ComponentStatusDegraded
		h.Message = name + " latency high"
	}
	return h
}

// determineOverallHealth calculates overall health from component statuses
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var (
		downCount     int
		degradedCount int
	)

	for _, component := range components {
		switch component.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
