package ai

import (
	"context"
	"fmt"
	"time"

	"vocatio/internal/config"
	"vocatio/internal/errors"
	"vocatio/internal/optimizer"
)

// Provider is a generation oracle with a health surface.
type Provider interface {
	optimizer.Oracle
	GetModelInfo(ctx context.Context, timeout time.Duration) *ModelInfo
	GetCircuitBreakerStats() map[string]any
}

// Service holds the configured provider for the optimize operation.
type Service struct {
	Provider Provider
	config   *config.OperationAIConfig
	logger   *errors.Logger
}

var _ optimizer.Oracle = (*Service)(nil)

// NewService creates the oracle selected by cfg.Provider.
func NewService(cfg *config.OperationAIConfig, prompts config.LoadedPrompts, logger *errors.Logger) (*Service, error) {
	if logger != nil {
		logger.Debug("Initializing AI service",
			"provider", cfg.Provider,
			"model", cfg.Model,
			"circuit_breaker", cfg.CircuitBreaker.Enabled)
	}

	var provider Provider
	switch cfg.Provider {
	case "gemini":
		oracle, err := NewGeminiOracle(cfg, prompts, logger)
		if err != nil {
			return nil, err
		}
		provider = oracle
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}

	return &Service{Provider: provider, config: cfg, logger: logger}, nil
}

// NewServiceFromConfig builds the optimize oracle from the full configuration.
func NewServiceFromConfig(cfg *config.Config, logger *errors.Logger) (*Service, error) {
	opCfg := cfg.GetOptimizeConfig()
	return NewService(&opCfg, cfg.LoadedOptimizePrompts(), logger)
}

// Propose delegates to the provider.
func (s *Service) Propose(ctx context.Context, req optimizer.OracleRequest) (*optimizer.OracleResponse, error) {
	return s.Provider.Propose(ctx, req)
}

// GetModelInfo returns information about the AI model for health checks.
func (s *Service) GetModelInfo(ctx context.Context, timeout time.Duration) *ModelInfo {
	return s.Provider.GetModelInfo(ctx, timeout)
}

// GetCircuitBreakerStats returns the provider's breaker statistics.
func (s *Service) GetCircuitBreakerStats() map[string]any {
	return s.Provider.GetCircuitBreakerStats()
}
