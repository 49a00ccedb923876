package server

import (
	"net/http"
	"strings"
)

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.deps.Observability.HTTPMiddleware()(s.setupRoutes())
}

// setupRoutes configures all HTTP routes and middleware.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return s.rateLimitMiddleware(s.authMiddleware(s.requestSizeLimitMiddleware(h)))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	mux.HandleFunc("POST /match", protected(s.matchHandler))
	mux.HandleFunc("POST /verify", protected(s.verifyHandler))
	mux.HandleFunc("POST /optimize", protected(s.optimizeHandler))

	mux.HandleFunc("POST /sessions", protected(s.createSessionHandler))
	mux.HandleFunc("GET /sessions/{id}", protected(s.getSessionHandler))
	mux.HandleFunc("DELETE /sessions/{id}", protected(s.deleteSessionHandler))
	mux.HandleFunc("GET /sessions/{id}/report", protected(s.sessionReportHandler))
	mux.HandleFunc("POST /sessions/{id}/optimize", protected(s.sessionOptimizeHandler))
	mux.HandleFunc("GET /sessions/{id}/optimized", protected(s.sessionOptimizedHandler))

	mux.HandleFunc("GET /optimized/{id}", protected(s.archivedHandler))

	return mux
}

// authMiddleware provides API key authentication.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr)
			writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.APIKeys[apiKey] {
			s.logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr,
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		s.logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests.
func (s *Server) requestSizeLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
		}
		next(w, r)
	}
}

// requestAPIKey reads the key from X-API-Key, falling back to a Bearer token.
func requestAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// maskAPIKey masks an API key for logging (shows only first 8 characters).
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
