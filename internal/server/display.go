package server

import "fmt"

// displayServerInfo prints the listening address and the active protections.
func (s *Server) displayServerInfo(addr string, tlsEnabled bool) {
	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}
	fmt.Fprintf(s.out, "Listening on %s://%s (TLS mode: %s)\n", scheme, addr, s.tlsMode())

	fmt.Fprintln(s.out, "Available endpoints:")
	fmt.Fprintln(s.out, "  GET    /health                  - Health check")
	fmt.Fprintln(s.out, "  GET    /stats                   - Server statistics")
	fmt.Fprintln(s.out, "  POST   /match                   - Skill match report")
	fmt.Fprintln(s.out, "  POST   /verify                  - Verify a rewritten record")
	fmt.Fprintln(s.out, "  POST   /optimize                - Integrity-checked rewrite")
	fmt.Fprintln(s.out, "  POST   /sessions                - Start a session")
	fmt.Fprintln(s.out, "  GET    /sessions/{id}           - Session summary")
	fmt.Fprintln(s.out, "  GET    /sessions/{id}/report    - Session match report")
	fmt.Fprintln(s.out, "  POST   /sessions/{id}/optimize  - Rewrite the session's record")
	fmt.Fprintln(s.out, "  GET    /sessions/{id}/optimized - Accepted rewrite")
	fmt.Fprintln(s.out, "  DELETE /sessions/{id}           - End a session")
	fmt.Fprintln(s.out, "  GET    /optimized/{id}          - Archived rewrite")

	if len(s.APIKeys) > 0 {
		fmt.Fprintf(s.out, "API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
	} else {
		fmt.Fprintln(s.out, "API authentication: DISABLED (no API keys configured)")
		fmt.Fprintln(s.out, "WARNING: API endpoints are publicly accessible!")
	}

	if s.MaxRequestSize > 0 {
		fmt.Fprintf(s.out, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(s.out, "Request size limit: DISABLED")
	}

	if s.RateLimiter != nil {
		fmt.Fprintf(s.out, "Rate limiting: ENABLED (%d requests/min, burst: %d, by IP: %t, by API key: %t)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity, s.RateLimit.ByIP, s.RateLimit.ByAPIKey)
	} else {
		fmt.Fprintln(s.out, "Rate limiting: DISABLED")
	}

	if s.deps.Orchestrator == nil {
		fmt.Fprintln(s.out, "Optimization: DISABLED (no generation service configured)")
	}
}

func (s *Server) tlsMode() string {
	if s.TLSConfig.Mode == "" {
		return "disabled"
	}
	return s.TLSConfig.Mode
}
