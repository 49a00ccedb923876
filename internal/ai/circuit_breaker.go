package ai

import (
	"fmt"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"

	"vocatio/internal/config"
	"vocatio/internal/errors"
)

// Breaker wraps calls of one result type with the circuit breaker pattern.
// A nil Breaker passes calls straight through.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewAICircuitBreaker creates the breaker guarding generation calls for an operation.
func NewAICircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *Breaker[*genai.GenerateContentResponse] {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	cb := cfg.CircuitBreaker
	return newBreaker[*genai.GenerateContentResponse](fmt.Sprintf("AI-%s", operationType), cfg, logger,
		func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cb.MinRequests && failureRatio >= cb.FailureThreshold
		})
}

// NewModelCircuitBreaker creates the breaker guarding model lookups used by health checks.
func NewModelCircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *Breaker[*genai.Model] {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	// Model info is less critical, so trip later
	return newBreaker[*genai.Model](fmt.Sprintf("AI-Model-%s", operationType), cfg, logger,
		func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.8
		})
}

func newBreaker[T any](name string, cfg *config.OperationAIConfig, logger *errors.Logger, readyToTrip func(gobreaker.Counts) bool) *Breaker[T] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.CircuitBreaker.MaxRequests,
				"failure_threshold", cfg.CircuitBreaker.FailureThreshold)
		},
	}
	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn with circuit breaker protection.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics.
func (b *Breaker[T]) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the breaker is closed or absent.
func (b *Breaker[T]) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
