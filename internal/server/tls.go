package server

import (
	"crypto/tls"
	"fmt"

	"vocatio/internal/config"
)

// newTLSConfig builds the listener's TLS configuration. Certificates and the
// client CA pool are read from reloader on every handshake.
func newTLSConfig(cfg config.TLSConfig, reloader *CertReloader) (*tls.Config, error) {
	base := &tls.Config{
		MinVersion:     minTLSVersion(cfg.MinVersion),
		GetCertificate: reloader.GetCertificate,
	}

	switch cfg.Mode {
	case "server":
		base.ClientAuth = tls.NoClientCert
	case "mutual":
		base.ClientAuth = clientAuthPolicy(cfg.ClientAuthPolicy)
		base.ClientCAs = reloader.ClientCAs()
		base.GetConfigForClient = func(*tls.ClientHelloInfo) (*tls.Config, error) {
			c := base.Clone()
			c.GetConfigForClient = nil
			c.ClientCAs = reloader.ClientCAs()
			return c, nil
		}
	default:
		return nil, fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", cfg.Mode)
	}
	return base, nil
}

func minTLSVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

func clientAuthPolicy(policy string) tls.ClientAuthType {
	switch policy {
	case "request":
		return tls.RequestClientCert
	case "verify":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert
	}
}
