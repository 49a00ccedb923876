package common

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocatio/internal/errors"
	"vocatio/internal/matching"
	"vocatio/internal/types"
)

const candidateJSON = `{
  "personalInfo": {"name": "Jane Doe"},
  "experiences": [{"company": "Acme", "title": "Engineer", "startDate": "2020-01", "endDate": null, "description": "Built X"}],
  "skills": ["Go", "Docker"]
}`

const jobYAML = `jobTitle: SRE
companyName: Globex
skills: [Go]
requirements: [Go, Kubernetes]
`

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

type matchInput struct {
	candidate *types.CandidateRecord
	job       *types.JobRecord
}

func decodeMatchInput(files []InputFile) (matchInput, error) {
	candidate, err := DecodeCandidate(files[0])
	if err != nil {
		return matchInput{}, err
	}
	job, err := DecodeJob(files[1])
	if err != nil {
		return matchInput{}, err
	}
	return matchInput{candidate: candidate, job: job}, nil
}

func buildReport(_ context.Context, in matchInput) (*types.MatchingReport, *types.TokenUsage, error) {
	return matching.BuildReport(in.candidate, in.job), nil, nil
}

func TestRunRecordCommandWritesFormattedOutput(t *testing.T) {
	dir := t.TempDir()
	cv := writeInput(t, dir, "cv.json", candidateJSON)
	job := writeInput(t, dir, "job.yaml", jobYAML)
	out := filepath.Join(dir, "out", "report.json")

	logger := errors.NewLoggerTo(io.Discard, slog.LevelDebug)
	cfg := CommandConfig{OutputFile: out, OutputFormat: "json"}

	report, err := RunRecordCommand(context.Background(), logger, cfg, []string{cv, job},
		decodeMatchInput, buildReport, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, report.MatchingScore)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(written), `"matchingScore": 50`)
}

func TestRunRecordCommandErrors(t *testing.T) {
	dir := t.TempDir()
	cv := writeInput(t, dir, "cv.json", candidateJSON)
	badJob := writeInput(t, dir, "job.json", `{not json`)
	logger := errors.NewLoggerTo(io.Discard, slog.LevelDebug)

	t.Run("missing file", func(t *testing.T) {
		_, err := RunRecordCommand(context.Background(), logger, CommandConfig{OutputFormat: "json"},
			[]string{cv, filepath.Join(dir, "nope.json")}, decodeMatchInput, buildReport, nil)
		assert.True(t, errors.HasCode(err, "INVALID_INPUT_FILE"))
	})

	t.Run("invalid record", func(t *testing.T) {
		_, err := RunRecordCommand(context.Background(), logger, CommandConfig{OutputFormat: "json"},
			[]string{cv, badJob}, decodeMatchInput, buildReport, nil)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidFormat))
	})

	t.Run("file too large", func(t *testing.T) {
		_, err := RunRecordCommand(context.Background(), logger, CommandConfig{OutputFormat: "json", MaxFileSize: 10},
			[]string{cv, badJob}, decodeMatchInput, buildReport, nil)
		require.Error(t, err)
		assert.ErrorContains(t, err, "larger than")
	})

	t.Run("unknown format", func(t *testing.T) {
		job := writeInput(t, dir, "job.yml", jobYAML)
		_, err := RunRecordCommand(context.Background(), logger, CommandConfig{OutputFormat: "xml"},
			[]string{cv, job}, decodeMatchInput, buildReport, nil)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidFormat))
	})
}

func TestFileProcessorReadFile(t *testing.T) {
	fp := NewFileProcessor(nil, 0)
	_, err := fp.ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
}
