package config

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocatio/internal/errors"
)

func newTestLogger() *errors.Logger {
	return errors.NewLoggerTo(io.Discard, slog.LevelDebug)
}

type fakeSecrets map[string]map[string]any

func (f fakeSecrets) GetSecretV2(path string) (*VaultSecret, error) {
	data, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return &VaultSecret{Data: data, Version: 1}, nil
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    int64
		wantErr bool
	}{
		{"int64", int64(42), 42, false},
		{"float64", float64(7), 7, false},
		{"string", "3", 3, false},
		{"bad string", "three", 0, true},
		{"unsupported", []string{"1"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVersionValue(tt.input, "secret/data/x")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKVv2(t *testing.T) {
	secret, err := parseKVv2(map[string]any{
		"data":     map[string]any{"api_key": "k"},
		"metadata": map[string]any{"version": "4"},
	}, "secret/data/gemini")
	require.NoError(t, err)
	assert.Equal(t, int64(4), secret.Version)
	assert.Equal(t, "k", secret.Data["api_key"])

	_, err = parseKVv2(map[string]any{"api_key": "k"}, "secret/gemini")
	assert.ErrorContains(t, err, "KVv2")
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{
		AI: AIConfig{Optimize: OperationAIConfig{}},
		Server: ServerConfig{TLS: TLSConfig{
			Mode: "server", CertFile: "old-cert.pem", KeyFile: "old-key.pem",
		}},
		Vault: VaultConfig{Enabled: true, Secrets: VaultSecrets{
			APIKeys:   "secret/data/api",
			GeminiKey: "secret/data/gemini",
			TLSCerts:  "secret/data/tls",
		}},
	}
	reader := fakeSecrets{
		"secret/data/api":    {"keys": "k1, k2"},
		"secret/data/gemini": {"api_key": "gem"},
		"secret/data/tls":    {"cert": "CERT", "key": "KEY"},
	}

	require.NoError(t, applySecrets(reader, cfg, newTestLogger()))

	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, "gem", cfg.AI.APIKey)
	assert.Equal(t, "gem", cfg.AI.Optimize.APIKey)
	assert.Equal(t, "CERT", cfg.Server.TLS.CertContent)
	assert.Empty(t, cfg.Server.TLS.CertFile, "content replaces the file source")
	assert.Empty(t, cfg.Server.TLS.CAContent)
	assert.NoError(t, cfg.ValidateTLSConfig())
}

func TestApplySecretsErrors(t *testing.T) {
	cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{GeminiKey: "secret/data/gemini"}}}

	err := applySecrets(fakeSecrets{}, cfg, nil)
	assert.ErrorContains(t, err, "Gemini")

	err = applySecrets(fakeSecrets{"secret/data/gemini": {"api_key": 12}}, cfg, nil)
	assert.ErrorContains(t, err, "not a string")
}

func TestApplyGeminiKeyKeepsExplicitOperationKey(t *testing.T) {
	cfg := &Config{AI: AIConfig{Optimize: OperationAIConfig{APIKey: "explicit"}}}
	applyGeminiKeyToConfig(cfg, "vault-key")
	assert.Equal(t, "vault-key", cfg.AI.APIKey)
	assert.Equal(t, "explicit", cfg.AI.Optimize.APIKey)
}

func TestResolveVaultToken(t *testing.T) {
	token, err := resolveVaultToken(VaultConfig{Token: "direct"})
	require.NoError(t, err)
	assert.Equal(t, "direct", token)

	path := writeFile(t, t.TempDir(), "token", "from-file\n")
	token, err = resolveVaultToken(VaultConfig{TokenFile: path})
	require.NoError(t, err)
	assert.Equal(t, "from-file", token)

	_, err = resolveVaultToken(VaultConfig{TokenFile: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	_, err = resolveVaultToken(VaultConfig{})
	assert.Error(t, err)
}

func TestNewVaultClientDisabled(t *testing.T) {
	client, err := NewVaultClient(VaultConfig{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, client)
}
