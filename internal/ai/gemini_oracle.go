package ai

import (
	"context"
	"crypto/rand"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"vocatio/internal/config"
	"vocatio/internal/errors"
	"vocatio/internal/optimizer"
	"vocatio/internal/types"
)

const operationOptimize = "Optimize"

// generateFunc is the single genai call the oracle makes.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiOracle proposes rewritten candidate records with Google Gemini.
type GeminiOracle struct {
	client         *genai.Client
	generate       generateFunc
	config         *config.OperationAIConfig
	prompts        config.LoadedPrompts
	circuitBreaker *Breaker[*genai.GenerateContentResponse]
	modelBreaker   *Breaker[*genai.Model]
	backoff        func(attempt int) time.Duration
	logger         *errors.Logger
}

var _ optimizer.Oracle = (*GeminiOracle)(nil)

// NewGeminiOracle creates a Gemini oracle. prompts holds file-loaded prompt
// overrides; empty values fall back to the config and then the defaults.
func NewGeminiOracle(cfg *config.OperationAIConfig, prompts config.LoadedPrompts, logger *errors.Logger) (*GeminiOracle, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"AI API key is required (set VOCATIO_AI_APIKEY or GEMINI_API_KEY)", nil)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Timeout != nil {
		clientConfig.HTTPClient = &http.Client{Timeout: *cfg.Timeout}
	}
	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, errors.NewOracleError(errors.ErrCodeOracleUnavailable, "failed to create Gemini client", err)
	}

	g := newGeminiOracle(cfg, prompts, logger, client.Models.GenerateContent)
	g.client = client
	return g, nil
}

func newGeminiOracle(cfg *config.OperationAIConfig, prompts config.LoadedPrompts, logger *errors.Logger, generate generateFunc) *GeminiOracle {
	return &GeminiOracle{
		generate:       generate,
		config:         cfg,
		prompts:        prompts,
		circuitBreaker: NewAICircuitBreaker(operationOptimize, cfg, logger),
		modelBreaker:   NewModelCircuitBreaker(operationOptimize, cfg, logger),
		backoff:        exponentialBackoff,
		logger:         logger,
	}
}

// Propose asks the model for a rewritten record. Transport failures are
// reported as ORACLE_UNAVAILABLE; responses that are not a well-formed
// candidate record as ORACLE_MALFORMED_RESPONSE.
func (g *GeminiOracle) Propose(ctx context.Context, req optimizer.OracleRequest) (*optimizer.OracleResponse, error) {
	tracer := otel.Tracer("vocatio.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.optimize_resume")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Int("optimizer.attempt", req.Attempt),
		attribute.Int("optimizer.corrections", len(req.Corrections)),
	)

	systemPrompt := g.systemPrompt()
	userPrompt, err := buildUserPrompt(g.userPromptTemplate(), req.Candidate, req.Job, req.Corrections)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "failed to build prompt", err)
	}

	genaiConfig := g.buildOptimizeSchema()
	if g.useSystemPrompts() && systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, "optimize_resume", func() (*genai.GenerateContentResponse, error) {
			return g.generate(ctx, g.config.Model, genai.Text(userPrompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, errors.NewOracleError(errors.ErrCodeOracleUnavailable, "failed to generate optimized record", err)
	}

	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}

	record, err := parseCandidateRecord(result.Text())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed response")
		// Tokens were spent even though the answer is unusable
		return &optimizer.OracleResponse{TokenUsage: usage}, err
	}

	span.SetAttributes(
		attribute.Int("output.experiences", len(record.Experiences)),
		attribute.Int("output.skills", len(record.Skills)),
	)
	return &optimizer.OracleResponse{Record: record, TokenUsage: usage}, nil
}

// parseCandidateRecord validates and decodes the response text.
func parseCandidateRecord(text string) (*types.CandidateRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.NewOracleError(errors.ErrCodeOracleMalformed, "empty response from model", nil)
	}

	if err := validateCandidateJSON(text); err != nil {
		appErr := errors.NewOracleError(errors.ErrCodeOracleMalformed, "response failed schema validation", err)
		var schemaErr *SchemaError
		if stderrors.As(err, &schemaErr) {
			appErr.WithContext("invalid_fields", schemaErr.Fields())
		}
		return nil, appErr
	}

	var record types.CandidateRecord
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, errors.NewOracleError(errors.ErrCodeOracleMalformed, "failed to parse response", err)
	}
	return &record, nil
}

// executeWithRetry executes an AI operation with retry logic and exponential backoff.
func (g *GeminiOracle) executeWithRetry(ctx context.Context, operation string, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	maxRetries := 0
	if g.config.MaxRetries != nil {
		maxRetries = *g.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(g.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 && g.logger != nil {
				g.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil || !isRetryableError(err) {
			break
		}
	}

	if g.logger != nil {
		g.logger.LogError(lastErr, "AI operation failed", "operation", operation)
	}
	return nil, fmt.Errorf("operation '%s' failed: %w", operation, lastErr)
}

// exponentialBackoff doubles from one second with up to 10% jitter, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(0)
	if jitterBig, err := rand.Int(rand.Reader, big.NewInt(int64(float64(baseDelay)*0.1))); err == nil {
		jitter = time.Duration(jitterBig.Int64())
	}
	return min(baseDelay+jitter, 30*time.Second)
}

// isRetryableError determines if an error should trigger a transport retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// ModelInfo represents information about the AI model.
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// GetModelInfo checks the readiness and availability of the configured model.
func (g *GeminiOracle) GetModelInfo(ctx context.Context, timeout time.Duration) *ModelInfo {
	info := &ModelInfo{Name: g.config.Model}
	if g.client == nil {
		info.Error = "no client configured"
		return info
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.warn("Model availability check failed", "model", g.config.Model, "error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version
	return info
}

// GetCircuitBreakerStats returns circuit breaker statistics.
func (g *GeminiOracle) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetStats(),
		"overall_healthy":  g.circuitBreaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

func (g *GeminiOracle) systemPrompt() string {
	return resolvePrompt(g.prompts.SystemPrompt, g.config.CustomPrompts.SystemPrompt, DefaultSystemPrompt)
}

func (g *GeminiOracle) userPromptTemplate() string {
	return resolvePrompt(g.prompts.UserPrompt, g.config.CustomPrompts.UserPrompt, DefaultUserPrompt)
}

func (g *GeminiOracle) useSystemPrompts() bool {
	return g.config.UseSystemPrompts == nil || *g.config.UseSystemPrompts
}

func (g *GeminiOracle) warn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}

// extractTokenUsage extracts token usage information from a Gemini response.
func extractTokenUsage(result *genai.GenerateContentResponse) *types.TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}
	usage := result.UsageMetadata
	return &types.TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
