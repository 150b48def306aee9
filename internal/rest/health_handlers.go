// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"encoding/json"
	"net/http"

	"github.com/jeremyhahn/go-passkey/pkg/health"
)

// HealthCheckResponse represents the response for health check endpoints.
type HealthCheckResponse struct {
	// Status is the overall health status
	Status health.Status `json:"status"`
	// Message provides additional context
	Message string `json:"message,omitempty"`
	// Checks contains individual check results (for readiness)
	Checks []health.CheckResult `json:"checks,omitempty"`
}

// HealthHandler handles GET /health requests with an aggregate status.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	results := s.checker.Ready(r.Context())
	status := health.AggregateStatus(results)

	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeHealthJSON(w, HealthCheckResponse{Status: status}, code)
}

// LivenessHandler handles GET /health/live requests.
//
// Liveness probes determine if the service is alive and should be
// restarted. This endpoint only fails when the process is unresponsive.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	result := s.checker.Live(r.Context())

	code := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeHealthJSON(w, HealthCheckResponse{
		Status:  result.Status,
		Message: result.Message,
	}, code)
}

// ReadinessHandler handles GET /health/ready requests.
//
// Readiness probes determine if the service can accept traffic. The
// service may be alive but not ready.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	results := s.checker.Ready(r.Context())
	status := health.AggregateStatus(results)

	resp := HealthCheckResponse{
		Status: status,
		Checks: results,
	}
	switch status {
	case health.StatusHealthy:
		resp.Message = "All checks passed"
	case health.StatusUnhealthy:
		resp.Message = "One or more checks failed"
	}

	code := http.StatusOK
	if status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeHealthJSON(w, resp, code)
}

// StartupHandler handles GET /health/startup requests.
//
// Startup probes determine if initialization has completed. Kubernetes
// will not check liveness or readiness until startup succeeds.
func (s *Server) StartupHandler(w http.ResponseWriter, r *http.Request) {
	result := s.checker.Startup(r.Context())

	code := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeHealthJSON(w, HealthCheckResponse{
		Status:  result.Status,
		Message: result.Message,
	}, code)
}

func (s *Server) writeHealthJSON(w http.ResponseWriter, resp HealthCheckResponse, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode health response", "error", err)
	}
}
