package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vocatio/internal/common"
	"vocatio/internal/errors"
	"vocatio/internal/integrity"
	"vocatio/internal/types"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [original-file] [proposed-file]",
	Short: "Check a rewritten candidate record against the original",
	Long: `Verify that a proposed candidate record keeps every protected fact of the
original: employers, titles and dates are unchanged, no experience or
education entry is added or removed, and every skill exists in the original.

Exits with status 1 when violations are found.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return applyOutputDefaults(cmd, &verifyConfig)
	},
	RunE: runVerify,
}

var verifyConfig common.CommandConfig

func init() {
	formatFlags(verifyCmd, &verifyConfig.OutputFile, &verifyConfig.OutputFormat)
}

type verifyInput struct {
	original *types.CandidateRecord
	proposed *types.CandidateRecord
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	_, verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	createInput := func(files []common.InputFile) (verifyInput, error) {
		original, err := common.DecodeCandidate(files[0])
		if err != nil {
			return verifyInput{}, err
		}
		proposed, err := common.DecodeCandidate(files[1])
		if err != nil {
			return verifyInput{}, err
		}
		return verifyInput{original: original, proposed: proposed}, nil
	}

	operation := func(_ context.Context, in verifyInput) (*types.VerificationResult, *types.TokenUsage, error) {
		if err := integrity.ValidateCandidate(in.original); err != nil {
			return nil, nil, err
		}
		result := verifier.VerifyRecord(in.original, in.proposed)
		return &result, nil, nil
	}

	result, err := common.RunRecordCommand(cmd.Context(), logger, verifyConfig, args,
		createInput, operation, nil)
	if err != nil {
		return fmt.Errorf("failed to verify record: %w", err)
	}

	if !result.Valid {
		return errors.NewIntegrityError(errors.ErrCodeIntegrityViolation,
			fmt.Sprintf("proposed record has %d violation(s)", len(result.Violations)), nil)
	}
	logger.Info("Proposed record passed verification")
	return nil
}
