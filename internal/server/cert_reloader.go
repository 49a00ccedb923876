package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"vocatio/internal/config"
	"vocatio/internal/errors"
)

// CertReloader holds the current server certificate and client CA pool and
// swaps them in place when the PEM files change.
type CertReloader struct {
	mu     sync.RWMutex
	cfg    config.TLSConfig
	cert   *tls.Certificate
	expiry time.Time
	caPool *x509.CertPool

	watcher  *CertWatcher
	onReload func(success bool, err error)
	logger   *errors.Logger

	stats ReloadStats
}

// ReloadStats counts reload attempts.
type ReloadStats struct {
	Reloads        int       `json:"reloads"`
	Failures       int       `json:"failures"`
	LastReloadTime time.Time `json:"lastReloadTime,omitzero"`
	LastError      string    `json:"lastError,omitempty"`
}

// NewCertReloader loads the configured certificates. onReload, if set, is
// called after every reload triggered by a file change.
func NewCertReloader(cfg config.TLSConfig, onReload func(success bool, err error), logger *errors.Logger) (*CertReloader, error) {
	cr := &CertReloader{cfg: cfg, onReload: onReload, logger: logger}
	if err := cr.load(); err != nil {
		return nil, err
	}
	return cr, nil
}

// Start watches the certificate files when auto-reload is enabled. Content
// loaded from Vault has no file to watch and is left as is.
func (cr *CertReloader) Start() error {
	if !cr.cfg.AutoReload.Enabled || cr.cfg.CertFile == "" {
		return nil
	}
	cr.watcher = NewCertWatcher(
		[]string{cr.cfg.CertFile, cr.cfg.KeyFile, cr.cfg.CAFile},
		cr.cfg.AutoReload.DebounceDelay,
		cr.reloadFromWatcher,
		cr.logger,
	)
	return cr.watcher.Start()
}

// Stop stops the file watcher.
func (cr *CertReloader) Stop() error {
	if cr.watcher == nil {
		return nil
	}
	return cr.watcher.Stop()
}

// Reload reloads the certificates now; on failure the previous ones stay in use.
func (cr *CertReloader) Reload() error {
	err := cr.load()

	cr.mu.Lock()
	cr.stats.LastReloadTime = time.Now()
	if err != nil {
		cr.stats.Failures++
		cr.stats.LastError = err.Error()
	} else {
		cr.stats.Reloads++
		cr.stats.LastError = ""
	}
	cr.mu.Unlock()
	return err
}

func (cr *CertReloader) reloadFromWatcher() {
	err := cr.Reload()
	if err != nil {
		cr.logger.LogError(err, "Failed to reload TLS certificates")
	} else {
		cr.logger.Info("TLS certificates reloaded", "expiry", cr.expiryTime())
	}
	if cr.onReload != nil {
		cr.onReload(err == nil, err)
	}
}

// GetCertificate serves the current certificate for tls.Config.
func (cr *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if cr.cert == nil {
		return nil, fmt.Errorf("no server certificate available")
	}
	return cr.cert, nil
}

// ClientCAs returns the current client CA pool, nil outside mutual mode.
func (cr *CertReloader) ClientCAs() *x509.CertPool {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return cr.caPool
}

// TimeToExpiry returns how long the server certificate stays valid.
func (cr *CertReloader) TimeToExpiry() (time.Duration, error) {
	expiry := cr.expiryTime()
	if expiry.IsZero() {
		return 0, fmt.Errorf("no certificates loaded")
	}
	return time.Until(expiry), nil
}

// Stats returns reload counters.
func (cr *CertReloader) Stats() ReloadStats {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return cr.stats
}

func (cr *CertReloader) expiryTime() time.Time {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return cr.expiry
}

func (cr *CertReloader) load() error {
	cert, err := loadServerCertificate(cr.cfg)
	if err != nil {
		return err
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse server certificate: %w", err)
	}

	var pool *x509.CertPool
	if cr.cfg.Mode == "mutual" {
		if pool, err = loadCACertificatePool(cr.cfg); err != nil {
			return err
		}
	}

	cr.mu.Lock()
	cr.cert = &cert
	cr.expiry = leaf.NotAfter
	cr.caPool = pool
	cr.mu.Unlock()
	return nil
}

// loadServerCertificate loads the server certificate from content or files.
func loadServerCertificate(cfg config.TLSConfig) (tls.Certificate, error) {
	if cfg.CertContent != "" && cfg.KeyContent != "" {
		cert, err := tls.X509KeyPair([]byte(cfg.CertContent), []byte(cfg.KeyContent))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from content: %w", err)
		}
		return cert, nil
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from files: %w", err)
		}
		return cert, nil
	}

	return tls.Certificate{}, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
}

// loadCACertificatePool loads the CA pool for client verification.
func loadCACertificatePool(cfg config.TLSConfig) (*x509.CertPool, error) {
	var caCert []byte
	switch {
	case cfg.CAContent != "":
		caCert = []byte(cfg.CAContent)
	case cfg.CAFile != "":
		data, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		caCert = data
	default:
		return nil, fmt.Errorf("CA certificate is required for mutual TLS mode (provide either caFile or caContent)")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append CA cert")
	}
	return pool, nil
}
