package formatters

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocatio/internal/errors"
	"vocatio/internal/optimizer"
	"vocatio/internal/types"
)

func sampleReport() *types.MatchingReport {
	return &types.MatchingReport{
		MatchingScore: 50,
		Matches: []types.SkillMatch{
			{Skill: "Go", InCV: true, InJob: true, Relevant: true},
			{Skill: "Kubernetes", InCV: false, InJob: true, Relevant: true},
		},
		AnalysisText: "Matches 1 of 2 requirements.",
	}
}

func acceptedOutcome() *optimizer.Outcome {
	return &optimizer.Outcome{
		State:    optimizer.StateAccepted,
		Attempts: 1,
		Optimized: &types.OptimizedCandidateRecord{
			ID:       "opt-1",
			SourceID: "cand-1",
			Version:  2,
			Record: types.CandidateRecord{
				PersonalInfo: types.PersonalInfo{Name: "Jane Doe"},
				Experiences: []types.Experience{
					{Company: "Acme", Title: "Engineer", StartDate: "2020-01", Description: "Built X"},
				},
				Skills: []string{"Go"},
			},
			Metrics: &types.OptimizationMetrics{
				Before:        &types.MatchingReport{MatchingScore: 50},
				After:         &types.MatchingReport{MatchingScore: 50},
				Keywords:      types.KeywordCoverage{Total: 2, Before: 0, After: 1, Gained: []string{"Go"}},
				Modifications: types.ModificationStats{
					ModifiedBlocks:   1,
					TotalBlocks:      2,
					ChangePercentage: 28.57,
					Changes:          []types.SectionChange{{Field: "experiences[0].description", OriginalChars: 7, OptimizedChars: 9}},
				},
			},
		},
		TokenUsage: &types.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func rejectedOutcome() *optimizer.Outcome {
	return &optimizer.Outcome{
		State:      optimizer.StateRejected,
		Attempts:   2,
		ReasonCode: errors.ReasonIntegrityViolation,
		Message:    "proposal changed protected facts",
		Violations: []types.Violation{
			{Field: "experiences[0].company", OriginalValue: "Acme", ProposedValue: "Globex", Reason: types.ReasonProtectedFieldChanged},
		},
	}
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewFormatterRegistry()

	tests := []struct {
		name   string
		data   any
		format string
		want   []string
	}{
		{"match text", sampleReport(), "text", []string{"Score: 50/100", "Kubernetes", "Matches 1 of 2 requirements."}},
		{"match markdown", sampleReport(), "markdown", []string{"# Skill Match", "| Go | ✓ | ✓ | ✓ |"}},
		{"verify valid", &types.VerificationResult{Valid: true}, "text", []string{"No violations found."}},
		{"verify invalid", &types.VerificationResult{Violations: rejectedOutcome().Violations}, "markdown", []string{"## Violations (1)", "`experiences[0].company`", "Globex"}},
		{"accepted text", acceptedOutcome(), "text", []string{"State: Accepted", "Engineer at Acme (2020-01 - present)", "Tokens: 15", "Match score: 50% -> 50% (+0)", "Job keywords in text: 0 -> 1 of 2", "Gained: Go", "experiences[0].description: 7 -> 9 chars"}},
		{"accepted markdown", acceptedOutcome(), "markdown", []string{"# Jane Doe", "### Engineer, Acme", "Version 2 of cand-1", "## Before / After", "| Match score | 50% | 50% |", "| Job keywords | 0/2 | 1/2 |", "**Modified blocks:** 1 of 2"}},
		{"rejected text", rejectedOutcome(), "text", []string{"State: Rejected", "Reason: IntegrityViolation", "Proposed: Globex"}},
		{"rejected markdown", rejectedOutcome(), "markdown", []string{"# Optimization Rejected", "**Attempts:** 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := registry.Format(tt.data, tt.format)
			require.NoError(t, err)
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestJSONFormatterRendersStateNames(t *testing.T) {
	out, err := NewFormatterRegistry().Format(rejectedOutcome(), "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Rejected", decoded["state"])
	assert.Equal(t, "IntegrityViolation", decoded["reasonCode"])
}

func TestUnknownFormat(t *testing.T) {
	_, err := NewFormatterRegistry().Format(sampleReport(), "yaml")
	assert.ErrorContains(t, err, "no formatter found for format 'yaml'")
}

func TestTextFormatterFallsBackOnlyForJSON(t *testing.T) {
	_, err := NewFormatterRegistry().Format(map[string]string{"a": "b"}, "text")
	assert.Error(t, err)
}

func TestFormatterTypeMismatch(t *testing.T) {
	_, err := (&MatchTextFormatter{}).Format(acceptedOutcome())
	assert.ErrorContains(t, err, "expected *MatchingReport")
}

func TestSupportedFormats(t *testing.T) {
	assert.Equal(t, []string{"json", "markdown", "text"}, NewFormatterRegistry().GetSupportedFormats())
}
