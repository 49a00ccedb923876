package server

import (
	"io"
	"os"
	"time"

	"vocatio/internal/ai"
	"vocatio/internal/config"
	"vocatio/internal/errors"
	"vocatio/internal/factstore"
	"vocatio/internal/integrity"
	"vocatio/internal/matching"
	"vocatio/internal/observability"
	"vocatio/internal/optimizer"
	"vocatio/internal/types"
)

// RecordPairRequest is the body of /match, /optimize and POST /sessions.
type RecordPairRequest struct {
	Candidate *types.CandidateRecord `json:"candidate"`
	Job       *types.JobRecord       `json:"job"`
}

// VerifyRequest is the body of /verify.
type VerifyRequest struct {
	Original *types.CandidateRecord `json:"original"`
	Proposed *types.CandidateRecord `json:"proposed"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	SessionID string                `json:"sessionId"`
	Report    *types.MatchingReport `json:"report"`
}

// SessionSummary describes a live session.
type SessionSummary struct {
	SessionID        string    `json:"sessionId"`
	CandidateID      string    `json:"candidateId"`
	JobID            string    `json:"jobId"`
	CreatedAt        time.Time `json:"createdAt"`
	OptimizedID      string    `json:"optimizedId,omitempty"`
	OptimizedVersion int       `json:"optimizedVersion,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error      string            `json:"error"`
	Message    string            `json:"message,omitempty"`
	ReasonCode errors.ReasonCode `json:"reasonCode,omitempty"`
}

// Dependencies are the domain components the handlers run on.
type Dependencies struct {
	Store         *factstore.Store
	Archive       factstore.Archive
	Matcher       *matching.Matcher
	Verifier      *integrity.Verifier
	Orchestrator  *optimizer.Orchestrator // nil when no oracle could be built
	AI            *ai.Service             // health and breaker stats; may be nil
	Observability *observability.Manager
}

// Server holds configuration for the HTTP server.
type Server struct {
	Host    string
	Port    string
	Version string

	TLSConfig config.TLSConfig

	// Certificate reloading, set when TLS auto-reload is enabled
	CertReloader *CertReloader

	// API Authentication
	APIKeys map[string]bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxRequestSize int64

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	HealthCheckTimeout time.Duration

	deps   Dependencies
	logger *errors.Logger
	out    io.Writer
}

// ServerConfig holds configuration for creating a Server instance.
type ServerConfig struct {
	Host               string
	Port               string
	Version            string
	TLSConfig          config.TLSConfig
	APIKeys            []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxRequestSize     int64
	RateLimit          *config.RateLimitConfig
	HealthCheckTimeout time.Duration
}

// NewServerConfig builds a ServerConfig from the application configuration.
func NewServerConfig(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		Version:            version,
		TLSConfig:          cfg.Server.TLS,
		APIKeys:            cfg.Server.APIKeys,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
		MaxRequestSize:     cfg.App.MaxFileSize,
		RateLimit:          &cfg.Server.RateLimit,
		HealthCheckTimeout: 5 * time.Second,
	}
}

// NewServer creates a new Server instance.
func NewServer(cfg ServerConfig, deps Dependencies, logger *errors.Logger) *Server {
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	if deps.Matcher == nil {
		deps.Matcher = matching.NewMatcher(nil)
	}
	if deps.Verifier == nil {
		deps.Verifier = integrity.NewVerifier(deps.Matcher, integrity.DefaultOptions())
	}
	if deps.Store == nil {
		deps.Store = factstore.NewStore(0, 0, logger)
	}
	if deps.Archive == nil {
		deps.Archive = factstore.NewMemoryArchive()
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = 5 * time.Second
	}

	return &Server{
		Host:               cfg.Host,
		Port:               cfg.Port,
		Version:            cfg.Version,
		TLSConfig:          cfg.TLSConfig,
		APIKeys:            apiKeyMap,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		IdleTimeout:        cfg.IdleTimeout,
		MaxRequestSize:     cfg.MaxRequestSize,
		RateLimit:          cfg.RateLimit,
		RateLimiter:        rateLimiter,
		HealthCheckTimeout: cfg.HealthCheckTimeout,
		deps:               deps,
		logger:             logger,
		out:                os.Stdout,
	}
}

func (s *Server) metrics() *observability.Metrics {
	return s.deps.Observability.Metrics()
}
