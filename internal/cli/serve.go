package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vocatio/internal/ai"
	"vocatio/internal/config"
	"vocatio/internal/factstore"
	"vocatio/internal/observability"
	"vocatio/internal/optimizer"
	"vocatio/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing skill matching, verification, optimization and
session endpoints.

Available endpoints:
- POST /match, /verify, /optimize: stateless operations on a record pair
- POST /sessions: start a session; GET/DELETE /sessions/{id}
- GET /sessions/{id}/report, POST /sessions/{id}/optimize, GET /sessions/{id}/optimized
- GET /optimized/{id}: archived rewrites
- GET /health, GET /stats

Optimization endpoints answer 503 when no AI API key is configured.`,
	RunE: runServe,
}

var serveFlags struct {
	port     string
	host     string
	tlsMode  string
	certFile string
	keyFile  string
	caFile   string
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.tlsMode, "tls-mode", "", "TLS mode: disabled, server, mutual (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.certFile, "cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.keyFile, "key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.caFile, "ca-file", "", "CA certificate file for client cert verification (PEM, overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded configuration.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	override := func(flag string, target *string, value string) {
		if cmd.Flags().Changed(flag) {
			*target = value
		}
	}
	override("port", &cfg.Server.Port, serveFlags.port)
	override("host", &cfg.Server.Host, serveFlags.host)
	override("tls-mode", &cfg.Server.TLS.Mode, serveFlags.tlsMode)
	override("cert-file", &cfg.Server.TLS.CertFile, serveFlags.certFile)
	override("key-file", &cfg.Server.TLS.KeyFile, serveFlags.keyFile)
	override("ca-file", &cfg.Server.TLS.CAFile, serveFlags.caFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	applyServeFlags(cmd, cfg)
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	matcher, verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	om, err := observability.NewManager(observability.GetSettings(cfg, Version), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(ctx); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	}()
	metrics := om.Metrics()

	store := factstore.NewStore(cfg.Session.TTL, cfg.Session.CleanupInterval, logger)
	if err := metrics.ObserveSessions(store.Len); err != nil {
		logger.Warn("Session gauge unavailable", "error", err)
	}

	archive, err := factstore.OpenArchive(cfg.Storage.Driver, cfg.Storage.Path, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Warn("Failed to close archive", "error", err)
		}
	}()

	deps := server.Dependencies{
		Store:         store,
		Archive:       archive,
		Matcher:       matcher,
		Verifier:      verifier,
		Observability: om,
	}

	service, err := ai.NewServiceFromConfig(cfg, logger)
	if err != nil {
		logger.Warn("Generation service unavailable, optimization endpoints disabled", "error", err)
	} else {
		deps.AI = service
		deps.Orchestrator = optimizer.New(observability.InstrumentOracle(service, metrics), verifier, optimizer.Options{
			RetryBudget:    cfg.Optimizer.RetryBudget,
			AttemptTimeout: cfg.Optimizer.AttemptTimeout,
		}, logger).WithArchive(archive).WithMetrics(metrics)
	}

	return server.NewServer(server.NewServerConfig(cfg, Version), deps, logger).Start(cmd.Context())
}
