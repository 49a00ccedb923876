package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocatio/internal/config"
)

func listenLocal(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

// writeSelfSigned writes a self-signed certificate valid for validFor into dir
func writeSelfSigned(t *testing.T, dir string, validFor time.Duration) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "localhost"},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "server.crt")
	keyFile = filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certFile, keyFile
}

func TestCertReloaderReload(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir, 48*time.Hour)

	cr, err := NewCertReloader(config.TLSConfig{Mode: "server", CertFile: certFile, KeyFile: keyFile}, nil, testLogger())
	require.NoError(t, err)

	before, err := cr.TimeToExpiry()
	require.NoError(t, err)
	assert.InDelta(t, (48 * time.Hour).Hours(), before.Hours(), 0.1)

	writeSelfSigned(t, dir, 30*24*time.Hour)
	require.NoError(t, cr.Reload())

	after, err := cr.TimeToExpiry()
	require.NoError(t, err)
	assert.Greater(t, after, 29*24*time.Hour)
	assert.Equal(t, 1, cr.Stats().Reloads)

	t.Run("failed reload keeps the current certificate", func(t *testing.T) {
		require.NoError(t, os.WriteFile(certFile, []byte("garbage"), 0600))
		assert.Error(t, cr.Reload())

		cert, err := cr.GetCertificate(nil)
		require.NoError(t, err)
		assert.NotNil(t, cert)
		stats := cr.Stats()
		assert.Equal(t, 1, stats.Failures)
		assert.NotEmpty(t, stats.LastError)
	})
}

func TestCertReloaderWatchesFiles(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir, 48*time.Hour)

	reloaded := make(chan bool, 4)
	cfg := config.TLSConfig{
		Mode:       "server",
		CertFile:   certFile,
		KeyFile:    keyFile,
		AutoReload: config.AutoReloadConfig{Enabled: true, DebounceDelay: 20 * time.Millisecond},
	}
	cr, err := NewCertReloader(cfg, func(success bool, _ error) {
		select {
		case reloaded <- success:
		default:
		}
	}, testLogger())
	require.NoError(t, err)
	require.NoError(t, cr.Start())
	t.Cleanup(func() { _ = cr.Stop() })

	writeSelfSigned(t, dir, 90*24*time.Hour)

	require.Eventually(t, func() bool {
		after, err := cr.TimeToExpiry()
		return err == nil && after > 80*24*time.Hour
	}, 5*time.Second, 20*time.Millisecond)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ok := <-reloaded:
			if ok {
				return
			}
		case <-deadline:
			t.Fatal("no successful reload was reported")
		}
	}
}

func TestCertReloaderErrors(t *testing.T) {
	_, err := NewCertReloader(config.TLSConfig{Mode: "server"}, nil, testLogger())
	assert.ErrorContains(t, err, "certificate and key are required")

	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir, time.Hour)
	_, err = NewCertReloader(config.TLSConfig{Mode: "mutual", CertFile: certFile, KeyFile: keyFile}, nil, testLogger())
	assert.ErrorContains(t, err, "CA certificate is required")
}

func TestNewTLSConfig(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir, time.Hour)

	mutual := config.TLSConfig{Mode: "mutual", CertFile: certFile, KeyFile: keyFile, CAFile: certFile, MinVersion: "1.3", ClientAuthPolicy: "verify"}
	cr, err := NewCertReloader(mutual, nil, testLogger())
	require.NoError(t, err)

	cfg, err := newTLSConfig(mutual, cr)
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
	assert.Equal(t, tls.VerifyClientCertIfGiven, cfg.ClientAuth)
	assert.NotNil(t, cfg.ClientCAs)

	perClient, err := cfg.GetConfigForClient(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	assert.Same(t, cr.ClientCAs(), perClient.ClientCAs)

	_, err = newTLSConfig(config.TLSConfig{Mode: "bogus"}, cr)
	assert.Error(t, err)
}

func TestServeTLS(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir, 48*time.Hour)

	s, _ := newTestServer(t, ServerConfig{TLSConfig: config.TLSConfig{Mode: "server", CertFile: certFile, KeyFile: keyFile}}, nil)
	ln := listenLocal(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	caPEM, err := os.ReadFile(certFile)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(caPEM))
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}}}

	require.Eventually(t, func() bool {
		resp, err := client.Get("https://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
