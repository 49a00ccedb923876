package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Start listens on Host:Port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.Host, s.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}

	if err := s.configureTLS(httpServer); err != nil {
		_ = ln.Close()
		return err
	}

	s.displayServerInfo(ln.Addr().String(), httpServer.TLSConfig != nil)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server",
			"address", ln.Addr().String(),
			"tls_enabled", httpServer.TLSConfig != nil)

		var err error
		if httpServer.TLSConfig != nil {
			err = httpServer.ServeTLS(ln, "", "")
		} else {
			err = httpServer.Serve(ln)
		}
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		s.cleanup()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(httpServer)
	}
}

// configureTLS attaches a reloadable TLS configuration unless TLS is disabled.
func (s *Server) configureTLS(httpServer *http.Server) error {
	if s.TLSConfig.Mode == "" || s.TLSConfig.Mode == "disabled" {
		return nil
	}

	reloader, err := NewCertReloader(s.TLSConfig, func(success bool, _ error) {
		s.metrics().RecordCertReload(context.Background(), success)
	}, s.logger)
	if err != nil {
		return fmt.Errorf("failed to set up TLS: %w", err)
	}
	if err := reloader.Start(); err != nil {
		return fmt.Errorf("failed to start certificate watcher: %w", err)
	}

	tlsConfig, err := newTLSConfig(s.TLSConfig, reloader)
	if err != nil {
		_ = reloader.Stop()
		return err
	}
	s.CertReloader = reloader
	httpServer.TLSConfig = tlsConfig
	return nil
}

// performGracefulShutdown drains in-flight requests for up to ShutdownTimeout.
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	defer s.cleanup()

	s.logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanup stops the background goroutines owned by the server.
func (s *Server) cleanup() {
	if s.CertReloader != nil {
		if err := s.CertReloader.Stop(); err != nil {
			s.logger.LogError(err, "Failed to stop certificate watcher")
		}
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}
	s.deps.Store.Close()
}
