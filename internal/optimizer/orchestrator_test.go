package optimizer

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocatio/internal/errors"
	"vocatio/internal/factstore"
	"vocatio/internal/types"
)

type scriptedOracle struct {
	mu       sync.Mutex
	replies  []func(req OracleRequest) (*OracleResponse, error)
	requests []OracleRequest
}

func (o *scriptedOracle) Propose(ctx context.Context, req OracleRequest) (*OracleResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	i := len(o.requests) - 1
	if i >= len(o.replies) {
		i = len(o.replies) - 1
	}
	return o.replies[i](req)
}

func returns(mutate func(*types.CandidateRecord)) func(OracleRequest) (*OracleResponse, error) {
	return func(req OracleRequest) (*OracleResponse, error) {
		rec := req.Candidate.Clone()
		if mutate != nil {
			mutate(rec)
		}
		return &OracleResponse{Record: rec, TokenUsage: &types.TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}}, nil
	}
}

func fails(err error) func(OracleRequest) (*OracleResponse, error) {
	return func(OracleRequest) (*OracleResponse, error) { return nil, err }
}

func addKubernetes(rec *types.CandidateRecord) {
	rec.Skills = append(rec.Skills, "Kubernetes")
}

func rewordDescription(rec *types.CandidateRecord) {
	rec.Experiences[0].Description = "Architected X at scale"
}

func source() *types.CandidateRecord {
	return &types.CandidateRecord{
		ID:           "cand-1",
		PersonalInfo: types.PersonalInfo{Name: "Jane Doe"},
		Experiences: []types.Experience{
			{Company: "Acme", Title: "Engineer", StartDate: "2020-01", EndDate: types.StringPtr("2021-01"), Description: "Built X"},
		},
		Skills: []string{"Go", "Docker"},
	}
}

func targetJob() *types.JobRecord {
	return &types.JobRecord{ID: "job-1", JobTitle: "SRE", Skills: []string{"Go"}, Requirements: []string{"Kubernetes", "Go"}}
}

type recordingMetrics struct {
	outcome    string
	reason     string
	attempts   int
	violations int
}

func (m *recordingMetrics) RecordOptimization(_ context.Context, outcome, reason string, attempts, violations int, _ time.Duration) {
	m.outcome, m.reason, m.attempts, m.violations = outcome, reason, attempts, violations
}

func TestRunAcceptsValidRewrite(t *testing.T) {
	oracle := &scriptedOracle{replies: []func(OracleRequest) (*OracleResponse, error){returns(rewordDescription)}}
	metrics := &recordingMetrics{}
	orch := New(oracle, nil, Options{RetryBudget: DefaultRetryBudget}, nil).WithMetrics(metrics)

	outcome, err := orch.Run(context.Background(), source(), targetJob())
	require.NoError(t, err)

	assert.True(t, outcome.Accepted())
	assert.Equal(t, errors.ReasonNone, outcome.ReasonCode)
	assert.Equal(t, 1, outcome.Attempts)
	require.NotNil(t, outcome.Optimized)
	assert.Equal(t, "cand-1", outcome.Optimized.SourceID)
	assert.Equal(t, "job-1", outcome.Optimized.JobID)
	assert.Equal(t, 1, outcome.Optimized.Version)
	assert.NotEqual(t, "cand-1", outcome.Optimized.ID)
	assert.Equal(t, "Architected X at scale", outcome.Optimized.Record.Experiences[0].Description)
	require.NotNil(t, outcome.Optimized.Metrics)
	assert.Equal(t, 50, outcome.Optimized.Metrics.Before.MatchingScore)
	assert.Zero(t, outcome.Optimized.Metrics.ScoreDelta)
	assert.Equal(t, []types.SectionChange{
		{Field: "experiences[0].description", OriginalChars: 7, OptimizedChars: 22},
	}, outcome.Optimized.Metrics.Modifications.Changes)
	assert.Equal(t, int64(150), outcome.TokenUsage.TotalTokens)

	assert.Equal(t, []State{StateAwaitingOracle, StateVerifying, StateAccepted}, destinations(outcome.Transitions))
	assert.Equal(t, "Accepted", metrics.outcome)
	assert.Equal(t, 1, metrics.attempts)
}

func TestRunRetriesThenRejectsInventedSkill(t *testing.T) {
	oracle := &scriptedOracle{replies: []func(OracleRequest) (*OracleResponse, error){returns(addKubernetes)}}
	orch := New(oracle, nil, Options{RetryBudget: DefaultRetryBudget}, nil)

	candidate := source()
	outcome, err := orch.Run(context.Background(), candidate, targetJob())
	require.NoError(t, err)

	assert.Equal(t, StateRejected, outcome.State)
	assert.Equal(t, errors.ReasonIntegrityViolation, outcome.ReasonCode)
	assert.Equal(t, errors.ReasonIntegrityViolation.Message(), outcome.Message)
	assert.Nil(t, outcome.Optimized)
	assert.Equal(t, 2, outcome.Attempts)
	require.Len(t, outcome.Violations, 1)
	assert.Equal(t, types.Violation{Field: "skills[2]", ProposedValue: "Kubernetes", Reason: types.ReasonUnverifiedSkill}, outcome.Violations[0])

	require.Len(t, oracle.requests, 2)
	assert.Empty(t, oracle.requests[0].Corrections)
	assert.Equal(t, outcome.Violations, oracle.requests[1].Corrections, "retry carries the violations")
	assert.Equal(t, 2, oracle.requests[1].Attempt)

	assert.Equal(t, []State{
		StateAwaitingOracle, StateVerifying, StateRetrying,
		StateAwaitingOracle, StateVerifying, StateRejected,
	}, destinations(outcome.Transitions))

	assert.Equal(t, []string{"Go", "Docker"}, candidate.Skills, "never auto-corrects the source")
	assert.Equal(t, int64(300), outcome.TokenUsage.TotalTokens)
}

func TestRunAcceptsCorrectedRetry(t *testing.T) {
	oracle := &scriptedOracle{replies: []func(OracleRequest) (*OracleResponse, error){
		returns(func(r *types.CandidateRecord) { r.Experiences[0].EndDate = types.StringPtr("2022-01") }),
		returns(rewordDescription),
	}}
	orch := New(oracle, nil, Options{RetryBudget: 1}, nil)

	outcome, err := orch.Run(context.Background(), source(), targetJob())
	require.NoError(t, err)
	assert.True(t, outcome.Accepted())
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, 2, outcome.Optimized.Attempts)
	require.Len(t, oracle.requests[1].Corrections, 1)
	assert.Equal(t, "experiences[0].endDate", oracle.requests[1].Corrections[0].Field)
}

func TestRunZeroBudgetRejectsImmediately(t *testing.T) {
	oracle := &scriptedOracle{replies: []func(OracleRequest) (*OracleResponse, error){returns(addKubernetes)}}
	outcome, err := New(oracle, nil, Options{RetryBudget: 0}, nil).Run(context.Background(), source(), targetJob())
	require.NoError(t, err)
	assert.Equal(t, errors.ReasonIntegrityViolation, outcome.ReasonCode)
	assert.Len(t, oracle.requests, 1)
}

func TestRunOracleFailures(t *testing.T) {
	tests := []struct {
		name   string
		reply  func(OracleRequest) (*OracleResponse, error)
		reason errors.ReasonCode
	}{
		{"transport error", fails(errors.NewOracleError(errors.ErrCodeOracleUnavailable, "503", nil)), errors.ReasonOracleUnavailable},
		{"unclassified error", fails(stderrors.New("connection reset")), errors.ReasonOracleUnavailable},
		{"malformed", fails(errors.NewOracleError(errors.ErrCodeOracleMalformed, "bad json", nil)), errors.ReasonOracleMalformedResponse},
		{"empty response", func(OracleRequest) (*OracleResponse, error) { return &OracleResponse{}, nil }, errors.ReasonOracleMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &scriptedOracle{replies: []func(OracleRequest) (*OracleResponse, error){tt.reply}}
			outcome, err := New(oracle, nil, Options{RetryBudget: 3}, nil).Run(context.Background(), source(), targetJob())
			require.NoError(t, err)

			assert.Equal(t, StateRejected, outcome.State)
			assert.Equal(t, tt.reason, outcome.ReasonCode)
			assert.Error(t, outcome.Cause)
			assert.Len(t, oracle.requests, 1, "oracle failures are not retried")
			assert.Empty(t, outcome.Violations)
		})
	}
}

type blockingOracle struct{}

func (blockingOracle) Propose(ctx context.Context, _ OracleRequest) (*OracleResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunAttemptTimeoutIsUnavailable(t *testing.T) {
	orch := New(blockingOracle{}, nil, Options{RetryBudget: 1, AttemptTimeout: 10 * time.Millisecond}, nil)
	outcome, err := orch.Run(context.Background(), source(), targetJob())
	require.NoError(t, err)
	assert.Equal(t, errors.ReasonOracleUnavailable, outcome.ReasonCode)
	assert.ErrorIs(t, outcome.Cause, context.DeadlineExceeded)
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	outcome, err := New(blockingOracle{}, nil, Options{RetryBudget: 1}, nil).Run(ctx, source(), targetJob())
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCancelled))
}

func TestRunRejectsEmptyInput(t *testing.T) {
	orch := New(&scriptedOracle{}, nil, Options{}, nil)

	_, err := orch.Run(context.Background(), &types.CandidateRecord{}, targetJob())
	assert.Equal(t, errors.ReasonEmptyInput, errors.ReasonOf(err))

	_, err = orch.Run(context.Background(), source(), &types.JobRecord{})
	assert.Equal(t, errors.ReasonEmptyInput, errors.ReasonOf(err))
}

func TestRunSessionPersistsOnlyAccepted(t *testing.T) {
	archive := factstore.NewMemoryArchive()
	session, err := factstore.NewSession(source(), targetJob())
	require.NoError(t, err)

	rejecting := &scriptedOracle{replies: []func(OracleRequest) (*OracleResponse, error){returns(addKubernetes)}}
	outcome, err := New(rejecting, nil, Options{RetryBudget: 1}, nil).WithArchive(archive).RunSession(context.Background(), session)
	require.NoError(t, err)
	assert.False(t, outcome.Accepted())
	assert.Nil(t, session.Optimized())
	stored, err := archive.ListBySource(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.Empty(t, stored)

	accepting := &scriptedOracle{replies: []func(OracleRequest) (*OracleResponse, error){returns(rewordDescription)}}
	orch := New(accepting, nil, Options{RetryBudget: 1}, nil).WithArchive(archive)

	for version := 1; version <= 2; version++ {
		outcome, err = orch.RunSession(context.Background(), session)
		require.NoError(t, err)
		require.True(t, outcome.Accepted())
		assert.Equal(t, version, outcome.Optimized.Version)
		assert.Equal(t, outcome.Optimized.ID, session.Optimized().ID)
	}

	stored, err = archive.ListBySource(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Equal(t, "Built X", session.Candidate().Experiences[0].Description, "source stays untouched")
}

func TestRunSessionAfterReset(t *testing.T) {
	session, err := factstore.NewSession(source(), targetJob())
	require.NoError(t, err)
	session.Reset()

	_, err = New(&scriptedOracle{}, nil, Options{}, nil).RunSession(context.Background(), session)
	assert.Equal(t, errors.ReasonEmptyInput, errors.ReasonOf(err))
}

type blockingOracle struct {
	entered chan struct{}
	proceed chan struct{}
	calls   atomic.Int32
}

func (o *blockingOracle) Propose(ctx context.Context, req OracleRequest) (*OracleResponse, error) {
	o.calls.Add(1)
	o.entered <- struct{}{}
	select {
	case <-o.proceed:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return returns(rewordDescription)(req)
}

func TestRunSessionRejectsConcurrentRun(t *testing.T) {
	archive := factstore.NewMemoryArchive()
	session, err := factstore.NewSession(source(), targetJob())
	require.NoError(t, err)

	oracle := &blockingOracle{entered: make(chan struct{}, 1), proceed: make(chan struct{})}
	orch := New(oracle, nil, Options{RetryBudget: 1}, nil).WithArchive(archive)

	type result struct {
		outcome *Outcome
		err     error
	}
	first := make(chan result, 1)
	go func() {
		outcome, err := orch.RunSession(context.Background(), session)
		first <- result{outcome, err}
	}()
	<-oracle.entered

	outcome, err := orch.RunSession(context.Background(), session)
	assert.Nil(t, outcome)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInProgress))

	close(oracle.proceed)
	res := <-first
	require.NoError(t, res.err)
	require.True(t, res.outcome.Accepted())
	assert.Equal(t, 1, res.outcome.Optimized.Version)
	assert.EqualValues(t, 1, oracle.calls.Load())

	// the guard is released once the first run finishes
	oracle.proceed = make(chan struct{})
	close(oracle.proceed)
	outcome, err = orch.RunSession(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Optimized.Version)
}

func destinations(steps []Step) []State {
	out := make([]State, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.To)
	}
	return out
}
