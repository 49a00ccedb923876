package cli

import (
	"context"

	"github.com/spf13/cobra"

	"vocatio/internal/config"
	"vocatio/internal/errors"
	"vocatio/internal/integrity"
	"vocatio/internal/matching"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "vocatio",
	Short: "Skill matching and integrity-checked résumé optimization",
	Long: `Vocatio matches a candidate record against a job record, verifies that a
rewritten record keeps every fact of the original, and runs AI rewrites that
are only accepted when they pass those checks.`,
	SilenceUsage: true,
}

// Execute runs the root command with cfg and logger available to every subcommand.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context.
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context.
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// newVerifier builds the matcher and verifier from the matching config.
func newVerifier(cfg *config.Config) (*matching.Matcher, *integrity.Verifier, error) {
	matcher, err := matching.NewMatcherFromFile(cfg.Matching.SynonymsFile)
	if err != nil {
		return nil, nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load skill synonyms", err)
	}
	verifier := integrity.NewVerifier(matcher, integrity.Options{NameHeuristic: cfg.Matching.NameHeuristic})
	return matcher, verifier, nil
}

// formatFlags adds the output flags shared by the record commands.
func formatFlags(cmd *cobra.Command, outputFile, outputFormat *string) {
	cmd.Flags().StringVarP(outputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(outputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return getConfigFromContext(cmd.Context()).App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func init() {
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
