package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"vocatio/internal/errors"
	"vocatio/internal/optimizer"
	"vocatio/internal/types"
)

// instrumentedOracle records duration, outcome and token usage of every proposal.
type instrumentedOracle struct {
	next    optimizer.Oracle
	metrics *Metrics
}

// InstrumentOracle wraps oracle with tracing and oracle call metrics. It
// returns oracle unchanged when there is nothing to record into.
func InstrumentOracle(oracle optimizer.Oracle, metrics *Metrics) optimizer.Oracle {
	if metrics == nil {
		return oracle
	}
	return &instrumentedOracle{next: oracle, metrics: metrics}
}

func (o *instrumentedOracle) Propose(ctx context.Context, req optimizer.OracleRequest) (*optimizer.OracleResponse, error) {
	ctx, span := otel.Tracer("vocatio.oracle").Start(ctx, "oracle.propose")
	defer span.End()

	start := time.Now()
	resp, err := o.next.Propose(ctx, req)
	duration := time.Since(start)

	usage := tokenUsage(resp)
	o.metrics.RecordOracleCall(ctx, req.Attempt, duration, usage, err)

	span.SetAttributes(attribute.Int("optimizer.attempt", req.Attempt))
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.ReasonOf(err)))
	}
	return resp, err
}

func tokenUsage(resp *optimizer.OracleResponse) *types.TokenUsage {
	if resp == nil {
		return nil
	}
	return resp.TokenUsage
}
