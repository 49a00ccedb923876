package config

import "fmt"

// ValidateTLSConfig validates the TLS configuration. Each PEM input comes
// from exactly one source: a file path or content loaded from Vault.
func (c *Config) ValidateTLSConfig() error {
	tls := c.Server.TLS

	switch tls.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", tls.MinVersion)
	}

	switch tls.Mode {
	case "disabled":
		return nil
	case "server", "mutual":
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", tls.Mode)
	}

	if err := oneSource("cert", tls.CertFile, tls.CertContent, tls.Mode); err != nil {
		return err
	}
	if err := oneSource("key", tls.KeyFile, tls.KeyContent, tls.Mode); err != nil {
		return err
	}
	if tls.Mode == "server" {
		return nil
	}

	if err := oneSource("ca", tls.CAFile, tls.CAContent, tls.Mode); err != nil {
		return err
	}
	switch tls.ClientAuthPolicy {
	case "", "require", "request", "verify":
		return nil
	default:
		return fmt.Errorf("invalid clientAuthPolicy: %s (must be 'require', 'request', or 'verify')", tls.ClientAuthPolicy)
	}
}

func oneSource(name, file, content, mode string) error {
	switch {
	case file == "" && content == "":
		return fmt.Errorf("TLS %s is required for %s mode (provide either %sFile or %sContent)", name, mode, name, name)
	case file != "" && content != "":
		return fmt.Errorf("cannot specify both %sFile and %sContent - choose one", name, name)
	}
	return nil
}
