package ai

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"vocatio/internal/config"
)

func breakerConfig(enabled bool) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "test-model",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          enabled,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			MinRequests:      2,
			FailureThreshold: 0.5,
		},
	}
}

func TestCircuitBreakerNames(t *testing.T) {
	cfg := breakerConfig(true)

	stats := NewAICircuitBreaker("Optimize", cfg, nil).GetStats()
	assert.Equal(t, "AI-Optimize", stats["name"])
	assert.Equal(t, "closed", stats["state"])
	assert.Equal(t, true, stats["enabled"])

	stats = NewModelCircuitBreaker("Optimize", cfg, nil).GetStats()
	assert.Equal(t, "AI-Model-Optimize", stats["name"])
}

func TestDisabledCircuitBreakerPassesThrough(t *testing.T) {
	cb := NewAICircuitBreaker("Optimize", breakerConfig(false), nil)
	require.Nil(t, cb)

	calls := 0
	for range 5 {
		_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
			calls++
			return nil, errors.New("boom")
		})
		assert.Error(t, err)
	}
	assert.Equal(t, 5, calls)
	assert.True(t, cb.IsHealthy())
	assert.Equal(t, map[string]any{"enabled": false}, cb.GetStats())
}

func TestCircuitBreakerTrips(t *testing.T) {
	cb := NewAICircuitBreaker("Optimize", breakerConfig(true), newTestLogger())

	fail := func() (*genai.GenerateContentResponse, error) { return nil, errors.New("unavailable") }
	for range 2 {
		_, err := cb.Execute(fail)
		require.Error(t, err)
	}

	assert.False(t, cb.IsHealthy())

	called := false
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		called = true
		return &genai.GenerateContentResponse{}, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called, "open breaker short-circuits")
}
