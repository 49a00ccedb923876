package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vocatio/internal/common"
	"vocatio/internal/integrity"
	"vocatio/internal/types"
)

var matchCmd = &cobra.Command{
	Use:   "match [candidate-file] [job-file]",
	Short: "Report how well a candidate's skills cover a job",
	Long: `Compare the skills of a candidate record with the skills and requirements of
a job record. Both files are JSON or YAML. The report lists every skill with
where it appears and a score: the percentage of required skills the
candidate has.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return applyOutputDefaults(cmd, &matchConfig)
	},
	RunE: runMatch,
}

var matchConfig common.CommandConfig

func init() {
	formatFlags(matchCmd, &matchConfig.OutputFile, &matchConfig.OutputFormat)
}

type recordPair struct {
	candidate *types.CandidateRecord
	job       *types.JobRecord
}

func decodeRecordPair(files []common.InputFile) (recordPair, error) {
	if len(files) != 2 {
		return recordPair{}, fmt.Errorf("expected 2 files, got %d", len(files))
	}
	candidate, err := common.DecodeCandidate(files[0])
	if err != nil {
		return recordPair{}, err
	}
	job, err := common.DecodeJob(files[1])
	if err != nil {
		return recordPair{}, err
	}
	return recordPair{candidate: candidate, job: job}, nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	matcher, _, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	operation := func(_ context.Context, in recordPair) (*types.MatchingReport, *types.TokenUsage, error) {
		if err := integrity.ValidateCandidate(in.candidate); err != nil {
			return nil, nil, err
		}
		if err := integrity.ValidateJob(in.job); err != nil {
			return nil, nil, err
		}
		return matcher.BuildReport(in.candidate, in.job), nil, nil
	}

	logDetails := func(in recordPair, cfg common.CommandConfig) {
		logger.Debug("Starting skill match",
			"cv_skills", len(in.candidate.Skills),
			"job_skills", len(in.job.Skills),
			"requirements", len(in.job.Requirements),
			"output_format", cfg.OutputFormat)
	}

	report, err := common.RunRecordCommand(cmd.Context(), logger, matchConfig, args,
		decodeRecordPair, operation, logDetails)
	if err != nil {
		return fmt.Errorf("failed to match skills: %w", err)
	}

	logger.Info("Skill match completed", "score", report.MatchingScore, "skills", len(report.Matches))
	return nil
}

// applyOutputDefaults fills the default output format and checks it is supported.
func applyOutputDefaults(cmd *cobra.Command, cmdConfig *common.CommandConfig) error {
	cfg := getConfigFromContext(cmd.Context())
	if cmdConfig.OutputFormat == "" {
		cmdConfig.OutputFormat = cfg.App.DefaultFormat
	}
	cmdConfig.MaxFileSize = int64(cfg.App.MaxFileSize)
	return common.ValidateOutputFormat(cmdConfig.OutputFormat, cfg.App.SupportedFormats)
}
