// Package optimizer runs résumé rewrites through the generation oracle and the
// integrity checks, accepting a rewrite only when every check passes.
package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"vocatio/internal/errors"
	"vocatio/internal/factstore"
	"vocatio/internal/integrity"
	"vocatio/internal/types"
)

// DefaultRetryBudget is the number of corrective resubmissions allowed.
const DefaultRetryBudget = 1

// Oracle proposes a rewritten candidate record. Implementations classify
// failures with ORACLE_UNAVAILABLE or ORACLE_MALFORMED_RESPONSE codes; any
// other error is treated as unavailability.
type Oracle interface {
	Propose(ctx context.Context, req OracleRequest) (*OracleResponse, error)
}

// OracleRequest is one call to the oracle.
type OracleRequest struct {
	Candidate *types.CandidateRecord
	Job       *types.JobRecord
	// Corrections lists the violations of the previous proposal; empty on the first attempt.
	Corrections []types.Violation
	Attempt     int
}

// OracleResponse is a parsed oracle proposal.
type OracleResponse struct {
	Record     *types.CandidateRecord
	TokenUsage *types.TokenUsage
}

// MetricsRecorder receives one call per finished optimization.
type MetricsRecorder interface {
	RecordOptimization(ctx context.Context, outcome string, reason string, attempts int, violations int, duration time.Duration)
}

// Options configures the orchestrator.
type Options struct {
	RetryBudget int
	// AttemptTimeout bounds each oracle call; zero leaves it to the oracle.
	AttemptTimeout time.Duration
}

// Outcome is the typed result of a finished optimization.
type Outcome struct {
	State       State                           `json:"state"`
	Optimized   *types.OptimizedCandidateRecord `json:"optimized,omitempty"`
	ReasonCode  errors.ReasonCode               `json:"reasonCode,omitempty"`
	Message     string                          `json:"message,omitempty"`
	Violations  []types.Violation               `json:"violations,omitempty"`
	Attempts    int                             `json:"attempts"`
	Transitions []Step                          `json:"transitions"`
	TokenUsage  *types.TokenUsage               `json:"tokenUsage,omitempty"`
	Cause       error                           `json:"-"`
}

// Accepted reports whether the rewrite was accepted.
func (o *Outcome) Accepted() bool {
	return o != nil && o.State == StateAccepted
}

// Orchestrator coordinates oracle calls and verification for one request at a time.
type Orchestrator struct {
	oracle   Oracle
	verifier *integrity.Verifier
	opts     Options
	archive  factstore.Archive
	metrics  MetricsRecorder
	logger   *errors.Logger
	now      func() time.Time
}

// New creates an orchestrator. A nil verifier uses the default checks.
func New(oracle Oracle, verifier *integrity.Verifier, opts Options, logger *errors.Logger) *Orchestrator {
	if verifier == nil {
		verifier = integrity.NewVerifier(nil, integrity.DefaultOptions())
	}
	return &Orchestrator{
		oracle:   oracle,
		verifier: verifier,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// WithArchive sets where accepted records are persisted by RunSession.
func (o *Orchestrator) WithArchive(archive factstore.Archive) *Orchestrator {
	o.archive = archive
	return o
}

// WithMetrics sets the metrics recorder.
func (o *Orchestrator) WithMetrics(metrics MetricsRecorder) *Orchestrator {
	o.metrics = metrics
	return o
}

// Run optimizes candidate for job. Rejections are reported in the Outcome; the
// error is non-nil only for invalid input or cancellation, in which case
// nothing has been persisted.
func (o *Orchestrator) Run(ctx context.Context, candidate *types.CandidateRecord, job *types.JobRecord) (*Outcome, error) {
	if err := integrity.ValidateCandidate(candidate); err != nil {
		return nil, err
	}
	if err := integrity.ValidateJob(job); err != nil {
		return nil, err
	}

	tracer := otel.Tracer("vocatio.optimizer")
	ctx, span := tracer.Start(ctx, "optimizer.run")
	defer span.End()

	start := o.now()
	source := candidate.Clone()
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	machine := NewMachine(o.opts.RetryBudget)
	usage := &types.TokenUsage{}

	req := OracleRequest{Candidate: source, Job: job.Clone(), Attempt: 1}
	if _, err := machine.Fire(EventSubmit); err != nil {
		return nil, err
	}

	var outcome *Outcome
	for outcome == nil {
		if err := ctx.Err(); err != nil {
			return nil, o.cancelled(span, err, machine)
		}

		o.debug("Requesting proposal from oracle", "attempt", req.Attempt, "corrections", len(req.Corrections))
		resp, err := o.propose(ctx, req)
		if ctx.Err() != nil {
			return nil, o.cancelled(span, ctx.Err(), machine)
		}
		if resp != nil {
			usage.Add(resp.TokenUsage)
		}

		if err != nil || resp == nil || resp.Record == nil {
			outcome = o.oracleFailure(machine, err)
			break
		}

		if _, err := machine.Fire(EventOracleReturned); err != nil {
			return nil, err
		}

		result := o.verifier.VerifyRecord(source, resp.Record)
		if result.Valid {
			if _, err := machine.Fire(EventVerified); err != nil {
				return nil, err
			}
			optimized, err := o.buildOptimized(ctx, source, job, resp.Record, req.Attempt)
			if err != nil {
				return nil, err
			}
			outcome = &Outcome{State: StateAccepted, Optimized: optimized}
			break
		}

		state, err := machine.Fire(EventViolationsFound)
		if err != nil {
			return nil, err
		}
		if state == StateRejected {
			outcome = &Outcome{
				State:      StateRejected,
				ReasonCode: errors.ReasonIntegrityViolation,
				Violations: result.Violations,
			}
			break
		}

		o.info("Proposal failed verification, retrying with corrections",
			"attempt", req.Attempt, "violations", len(result.Violations))
		if _, err := machine.Fire(EventResubmit); err != nil {
			return nil, err
		}
		req.Corrections = result.Violations
		req.Attempt++
	}

	outcome.Attempts = req.Attempt
	outcome.Transitions = machine.History()
	outcome.Message = outcome.ReasonCode.Message()
	if usage.TotalTokens > 0 || usage.InputTokens > 0 {
		outcome.TokenUsage = usage
		if outcome.Optimized != nil {
			outcome.Optimized.TokenUsage = usage
		}
	}

	o.finish(ctx, span, outcome, o.now().Sub(start))
	return outcome, nil
}

// RunSession optimizes the session's records. An accepted rewrite is archived
// and then committed to the session's optimized slot. Only one RunSession may
// be in flight per session; a concurrent call fails with OPTIMIZATION_IN_PROGRESS
// before the oracle is consulted.
func (o *Orchestrator) RunSession(ctx context.Context, session *factstore.Session) (*Outcome, error) {
	release, err := session.BeginOptimize()
	if err != nil {
		return nil, err
	}
	defer release()

	candidate, job := session.Candidate(), session.Job()
	if candidate == nil || job == nil {
		return nil, errors.NewValidationError(errors.ErrCodeEmptyInput, "session has been reset", nil).
			WithContext("session_id", session.ID())
	}

	outcome, err := o.Run(ctx, candidate, job)
	if err != nil || !outcome.Accepted() {
		return outcome, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeCancelled, "optimization cancelled", err)
	}
	if o.archive != nil {
		if err := o.archive.Save(ctx, outcome.Optimized); err != nil {
			return nil, err
		}
	}
	if err := session.Commit(outcome.Optimized); err != nil {
		return nil, err
	}

	o.info("Optimized record committed",
		"session_id", session.ID(),
		"optimized_id", outcome.Optimized.ID,
		"version", outcome.Optimized.Version)
	return outcome, nil
}

func (o *Orchestrator) propose(ctx context.Context, req OracleRequest) (*OracleResponse, error) {
	if o.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.AttemptTimeout)
		defer cancel()
	}

	resp, err := o.oracle.Propose(ctx, req)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return resp, err
}

func (o *Orchestrator) oracleFailure(machine *Machine, err error) *Outcome {
	event, reason := EventOracleFailed, errors.ReasonOracleUnavailable
	if err == nil || errors.ReasonOf(err) == errors.ReasonOracleMalformedResponse {
		event, reason = EventOracleMalformed, errors.ReasonOracleMalformedResponse
	}
	if err == nil {
		err = errors.NewOracleError(errors.ErrCodeOracleMalformed, "oracle returned no record", nil)
	}

	// AwaitingOracle accepts both events
	_, _ = machine.Fire(event)

	if o.logger != nil {
		o.logger.LogError(err, "Oracle call failed", "reason", reason)
	}
	return &Outcome{State: StateRejected, ReasonCode: reason, Cause: err}
}

func (o *Orchestrator) buildOptimized(ctx context.Context, source *types.CandidateRecord, job *types.JobRecord, proposed *types.CandidateRecord, attempts int) (*types.OptimizedCandidateRecord, error) {
	// Save assigns the final version; this one is what it would be now.
	version := 1
	if o.archive != nil {
		v, err := o.archive.NextVersion(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		version = v
	}

	id := uuid.NewString()
	record := proposed.Clone()
	record.ID = id

	return &types.OptimizedCandidateRecord{
		ID:        id,
		SourceID:  source.ID,
		JobID:     job.ID,
		Version:   version,
		CreatedAt: o.now().UTC(),
		Record:    *record,
		Attempts:  attempts,
		Metrics:   o.verifier.Matcher().CompareRecords(source, record, job),
	}, nil
}

func (o *Orchestrator) cancelled(span oteltrace.Span, err error, machine *Machine) error {
	span.RecordError(err)
	o.info("Optimization cancelled", "state", machine.State().String())
	return errors.NewInternalError(errors.ErrCodeCancelled,
		fmt.Sprintf("optimization cancelled in state %s", machine.State()), err)
}

func (o *Orchestrator) finish(ctx context.Context, span oteltrace.Span, outcome *Outcome, duration time.Duration) {
	span.SetAttributes(
		attribute.String("optimizer.state", outcome.State.String()),
		attribute.String("optimizer.reason", string(outcome.ReasonCode)),
		attribute.Int("optimizer.attempts", outcome.Attempts),
		attribute.Int("optimizer.violations", len(outcome.Violations)),
	)
	if !outcome.Accepted() {
		span.SetStatus(codes.Error, string(outcome.ReasonCode))
	}

	if o.metrics != nil {
		o.metrics.RecordOptimization(ctx, outcome.State.String(), string(outcome.ReasonCode),
			outcome.Attempts, len(outcome.Violations), duration)
	}

	if outcome.Accepted() {
		o.info("Optimization accepted",
			"optimized_id", outcome.Optimized.ID,
			"source_id", outcome.Optimized.SourceID,
			"attempts", outcome.Attempts,
			"duration", duration)
		return
	}
	if o.logger != nil {
		o.logger.Warn("Optimization rejected",
			"reason", outcome.ReasonCode,
			"attempts", outcome.Attempts,
			"violations", len(outcome.Violations))
	}
}

func (o *Orchestrator) info(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}

func (o *Orchestrator) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}
