package common

import (
	"fmt"
	"slices"
)

// ValidateOutputFormat validates format against configured supported formats.
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidateRetryBudget rejects negative retry budgets.
func ValidateRetryBudget(budget int) error {
	if budget < 0 {
		return fmt.Errorf("retry budget must be zero or greater, got %d", budget)
	}
	return nil
}
