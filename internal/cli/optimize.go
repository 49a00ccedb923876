package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vocatio/internal/ai"
	"vocatio/internal/common"
	"vocatio/internal/errors"
	"vocatio/internal/factstore"
	"vocatio/internal/optimizer"
	"vocatio/internal/types"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [candidate-file] [job-file]",
	Short: "Rewrite a candidate record for a job, keeping every fact intact",
	Long: `Ask the AI model to rewrite a candidate record for a job record. Every proposal
is verified against the original; a proposal that changes protected facts is
sent back with the list of violations, up to --retry-budget times.

Accepted records are stored in the configured archive. Exits with status 1
when the rewrite is rejected.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyOutputDefaults(cmd, &optimizeConfig); err != nil {
			return err
		}
		if !cmd.Flags().Changed("retry-budget") {
			retryBudget = getConfigFromContext(cmd.Context()).Optimizer.RetryBudget
		}
		return common.ValidateRetryBudget(retryBudget)
	},
	RunE: runOptimize,
}

var (
	optimizeConfig common.CommandConfig
	retryBudget    int
)

func init() {
	formatFlags(optimizeCmd, &optimizeConfig.OutputFile, &optimizeConfig.OutputFormat)
	optimizeCmd.Flags().IntVar(&retryBudget, "retry-budget", optimizer.DefaultRetryBudget,
		"Corrective resubmissions allowed after a rejected proposal (default from config)")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	_, verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	service, err := ai.NewServiceFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}

	archive, err := factstore.OpenArchive(cfg.Storage.Driver, cfg.Storage.Path, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Warn("Failed to close archive", "error", err)
		}
	}()

	orchestrator := optimizer.New(service, verifier, optimizer.Options{
		RetryBudget:    retryBudget,
		AttemptTimeout: cfg.Optimizer.AttemptTimeout,
	}, logger).WithArchive(archive)

	operation := func(ctx context.Context, in recordPair) (*optimizer.Outcome, *types.TokenUsage, error) {
		session, err := factstore.NewSession(in.candidate, in.job)
		if err != nil {
			return nil, nil, err
		}
		outcome, err := orchestrator.RunSession(ctx, session)
		if err != nil {
			return nil, nil, err
		}
		return outcome, outcome.TokenUsage, nil
	}

	logDetails := func(in recordPair, cmdCfg common.CommandConfig) {
		logger.Info("Starting optimization",
			"experiences", len(in.candidate.Experiences),
			"skills", len(in.candidate.Skills),
			"job_title", in.job.JobTitle,
			"retry_budget", retryBudget,
			"output_format", cmdCfg.OutputFormat)
	}

	outcome, err := common.RunRecordCommand(cmd.Context(), logger, optimizeConfig, args,
		decodeRecordPair, operation, logDetails)
	if err != nil {
		return fmt.Errorf("failed to optimize record: %w", err)
	}

	if !outcome.Accepted() {
		return errors.NewIntegrityError(outcome.ReasonCode.Code(),
			fmt.Sprintf("optimization rejected after %d attempt(s): %s", outcome.Attempts, outcome.Message), outcome.Cause)
	}

	logger.Info("Optimization accepted",
		"optimized_id", outcome.Optimized.ID,
		"version", outcome.Optimized.Version,
		"attempts", outcome.Attempts)
	return nil
}
