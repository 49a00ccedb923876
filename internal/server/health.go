package server

import (
	"context"
	"net/http"
	"time"
)

// healthHandler reports service health including oracle and certificate status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "vocatio",
		"version": s.Version,
	}
	healthy := true

	if s.deps.AI != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.HealthCheckTimeout)
		defer cancel()
		info := s.deps.AI.GetModelInfo(ctx, s.HealthCheckTimeout)
		response["oracle"] = info
		healthy = healthy && info.Available
	} else {
		response["oracle"] = map[string]any{
			"available": false,
			"error":     "no generation service configured; optimization is disabled",
		}
	}

	if certStatus := s.checkCertificateHealth(); certStatus != nil {
		response["certificates"] = certStatus
		if ok, _ := certStatus["healthy"].(bool); !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, response, status)
}

// checkCertificateHealth reports certificate expiry, or nil without auto-reload.
func (s *Server) checkCertificateHealth() map[string]any {
	if s.CertReloader == nil {
		return nil
	}

	certStatus := map[string]any{}
	timeToExpiry, err := s.CertReloader.TimeToExpiry()
	if err != nil {
		certStatus["healthy"] = false
		certStatus["error"] = err.Error()
		return certStatus
	}

	certStatus["time_to_expiry"] = timeToExpiry.String()
	switch {
	case timeToExpiry <= 0:
		certStatus["healthy"] = false
		certStatus["status"] = "expired"
	case timeToExpiry <= 24*time.Hour:
		certStatus["healthy"] = false
		certStatus["status"] = "critical"
	case timeToExpiry <= 7*24*time.Hour:
		certStatus["healthy"] = true
		certStatus["status"] = "warning"
	default:
		certStatus["healthy"] = true
		certStatus["status"] = "ok"
	}
	certStatus["reloads"] = s.CertReloader.Stats()
	return certStatus
}

// statsHandler provides server statistics.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "vocatio",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"auth_enabled":           len(s.APIKeys) > 0,
		},
		"sessions": s.deps.Store.GetStats(),
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.deps.AI != nil {
		response["circuit_breaker"] = s.deps.AI.GetCircuitBreakerStats()
	}

	writeJSON(w, response, http.StatusOK)
}
