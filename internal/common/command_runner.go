package common

import (
	"context"
	"fmt"

	"vocatio/internal/errors"
	"vocatio/internal/types"
)

// CreateInputFunc builds the operation input from the files on the command line.
type CreateInputFunc[Input any] func(files []InputFile) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc runs the command's operation. Usage is nil for operations
// that make no oracle calls.
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, *types.TokenUsage, error)

// RunRecordCommand reads the record files named in args, runs the operation,
// reports token usage and writes the formatted result. The result is also
// returned so callers can derive an exit status from it.
func RunRecordCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	operation OperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) (Output, error) {
	var zero Output

	files, err := NewFileProcessor(logger, cmdConfig.MaxFileSize).ValidateAndReadFiles(args...)
	if err != nil {
		return zero, err
	}

	input, err := createInput(files)
	if err != nil {
		return zero, fmt.Errorf("failed to create input from files: %w", err)
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, tokenUsage, err := operation(ctx, input)
	if err != nil {
		return zero, err
	}

	if tokenUsage != nil && logger != nil {
		logger.Info("AI token usage",
			"input_tokens", tokenUsage.InputTokens,
			"output_tokens", tokenUsage.OutputTokens,
			"total_tokens", tokenUsage.TotalTokens)
	}

	if err := NewOutputHandler(logger).HandleOutput(result, cmdConfig); err != nil {
		return zero, err
	}
	return result, nil
}
