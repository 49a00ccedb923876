package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"vocatio/internal/config"
	"vocatio/internal/optimizer"
	"vocatio/internal/types"
)

// Metrics holds all custom metrics. Recording methods are safe on a nil receiver.
type Metrics struct {
	custom config.CustomMetricsConfig

	// Oracle call metrics
	OracleDuration metric.Float64Histogram
	OracleRequests metric.Int64Counter
	OracleErrors   metric.Int64Counter
	OracleTokens   metric.Int64Histogram

	// Business metrics
	Matches              metric.Int64Counter
	MatchScore           metric.Float64Histogram
	Verifications        metric.Int64Counter
	Violations           metric.Int64Counter
	Optimizations        metric.Int64Counter
	OptimizationAttempts metric.Int64Histogram
	OptimizationDuration metric.Float64Histogram

	// Infrastructure metrics
	RateLimitHits  metric.Int64Counter
	CertReloads    metric.Int64Counter
	SessionsActive metric.Int64ObservableGauge

	meter metric.Meter
}

var _ optimizer.MetricsRecorder = (*Metrics)(nil)

func newMetrics(meter metric.Meter, custom config.CustomMetricsConfig) (*Metrics, error) {
	m := &Metrics{custom: custom, meter: meter}

	var err error
	if m.OracleDuration, err = meter.Float64Histogram(
		"vocatio_oracle_duration_seconds",
		metric.WithDescription("Time spent waiting for oracle proposals"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oracle duration metric: %w", err)
	}
	if m.OracleRequests, err = meter.Int64Counter(
		"vocatio_oracle_requests_total",
		metric.WithDescription("Total number of oracle requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oracle request metric: %w", err)
	}
	if m.OracleErrors, err = meter.Int64Counter(
		"vocatio_oracle_errors_total",
		metric.WithDescription("Total number of failed oracle requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oracle error metric: %w", err)
	}
	if m.OracleTokens, err = meter.Int64Histogram(
		"vocatio_oracle_token_usage",
		metric.WithDescription("Token usage per oracle request (input, output, total)"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oracle token metric: %w", err)
	}

	if m.Matches, err = meter.Int64Counter(
		"vocatio_matches_total",
		metric.WithDescription("Total number of matching reports built"),
	); err != nil {
		return nil, fmt.Errorf("failed to create matches metric: %w", err)
	}
	if m.MatchScore, err = meter.Float64Histogram(
		"vocatio_match_score",
		metric.WithDescription("Distribution of match scores"),
		metric.WithExplicitBucketBoundaries(0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100),
	); err != nil {
		return nil, fmt.Errorf("failed to create match score metric: %w", err)
	}
	if m.Verifications, err = meter.Int64Counter(
		"vocatio_verifications_total",
		metric.WithDescription("Total number of integrity verifications"),
	); err != nil {
		return nil, fmt.Errorf("failed to create verifications metric: %w", err)
	}
	if m.Violations, err = meter.Int64Counter(
		"vocatio_violations_total",
		metric.WithDescription("Total number of integrity violations found, by reason"),
	); err != nil {
		return nil, fmt.Errorf("failed to create violations metric: %w", err)
	}
	if m.Optimizations, err = meter.Int64Counter(
		"vocatio_optimizations_total",
		metric.WithDescription("Total number of finished optimizations, by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create optimizations metric: %w", err)
	}
	if m.OptimizationAttempts, err = meter.Int64Histogram(
		"vocatio_optimization_attempts",
		metric.WithDescription("Oracle attempts used per optimization"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5),
	); err != nil {
		return nil, fmt.Errorf("failed to create optimization attempts metric: %w", err)
	}
	if m.OptimizationDuration, err = meter.Float64Histogram(
		"vocatio_optimization_duration_seconds",
		metric.WithDescription("End-to-end optimization duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create optimization duration metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter(
		"vocatio_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}
	if m.CertReloads, err = meter.Int64Counter(
		"vocatio_cert_reloads_total",
		metric.WithDescription("Total number of TLS certificate reloads"),
	); err != nil {
		return nil, fmt.Errorf("failed to create certificate reload metric: %w", err)
	}

	return m, nil
}

func (m *Metrics) aiEnabled() bool {
	return m != nil && m.custom.AIOperations.Enabled
}

func (m *Metrics) businessEnabled() bool {
	return m != nil && m.custom.BusinessMetrics.Enabled
}

func (m *Metrics) infraEnabled() bool {
	return m != nil && m.custom.Infrastructure.Enabled
}

// RecordOracleCall records one oracle request.
func (m *Metrics) RecordOracleCall(ctx context.Context, attempt int, duration time.Duration, usage *types.TokenUsage, err error) {
	if !m.aiEnabled() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("attempt", attempt),
		attribute.Bool("success", err == nil),
	}
	m.OracleRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.OracleErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.custom.AIOperations.TrackDuration {
		m.OracleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if usage != nil && m.custom.AIOperations.TrackTokenUsage {
		m.recordTokenMetrics(ctx, usage)
	}
}

func (m *Metrics) recordTokenMetrics(ctx context.Context, usage *types.TokenUsage) {
	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}

	for _, tt := range tokenTypes {
		m.OracleTokens.Record(ctx, tt.value, metric.WithAttributes(attribute.String("token_type", tt.tokenType)))
	}
}

// RecordMatch records a built matching report.
func (m *Metrics) RecordMatch(ctx context.Context, report *types.MatchingReport) {
	if !m.businessEnabled() || report == nil {
		return
	}
	m.Matches.Add(ctx, 1)
	if m.custom.BusinessMetrics.TrackMatchScores {
		m.MatchScore.Record(ctx, float64(report.MatchingScore))
	}
}

// RecordVerification records one integrity verification and its violations by reason.
func (m *Metrics) RecordVerification(ctx context.Context, result *types.VerificationResult) {
	if !m.businessEnabled() || result == nil {
		return
	}
	m.Verifications.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", result.Valid)))
	if m.custom.BusinessMetrics.TrackViolations {
		m.recordViolations(ctx, result.Violations)
	}
}

func (m *Metrics) recordViolations(ctx context.Context, violations []types.Violation) {
	byReason := make(map[string]int64)
	for _, v := range violations {
		byReason[v.Reason]++
	}
	for reason, n := range byReason {
		m.Violations.Add(ctx, n, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// RecordOptimization records a finished optimization.
func (m *Metrics) RecordOptimization(ctx context.Context, outcome string, reason string, attempts int, violations int, duration time.Duration) {
	if !m.businessEnabled() {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}

	if m.custom.BusinessMetrics.TrackSuccessRates {
		m.Optimizations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	m.OptimizationAttempts.Record(ctx, int64(attempts), metric.WithAttributes(attribute.String("outcome", outcome)))
	m.OptimizationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	if violations > 0 && m.custom.BusinessMetrics.TrackViolations {
		m.Violations.Add(ctx, int64(violations), metric.WithAttributes(attribute.String("reason", "final_rejection")))
	}
}

// RecordRateLimitHit records a rejected request; key is "ip" or "api_key".
func (m *Metrics) RecordRateLimitHit(ctx context.Context, key string) {
	if !m.infraEnabled() || !m.custom.Infrastructure.TrackRateLimits {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limit_key", key)))
}

// RecordCertReload records a TLS certificate reload attempt.
func (m *Metrics) RecordCertReload(ctx context.Context, success bool) {
	if !m.infraEnabled() {
		return
	}
	m.CertReloads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// ObserveSessions registers a gauge reporting the live session count.
func (m *Metrics) ObserveSessions(count func() int) error {
	if !m.infraEnabled() || !m.custom.Infrastructure.TrackSessions {
		return nil
	}
	gauge, err := m.meter.Int64ObservableGauge(
		"vocatio_sessions_active",
		metric.WithDescription("Number of live sessions in the fact store"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(count()))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions gauge: %w", err)
	}
	m.SessionsActive = gauge
	return nil
}
