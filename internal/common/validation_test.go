package common

import (
	"testing"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"json", "text", "markdown"}

	tests := []struct {
		name             string
		format           string
		supportedFormats []string
		expectedError    string
	}{
		{name: "valid format - json", format: "json", supportedFormats: supported},
		{name: "valid format - markdown", format: "markdown", supportedFormats: supported},
		{
			name:             "invalid format - yaml",
			format:           "yaml",
			supportedFormats: supported,
			expectedError:    "unsupported output format 'yaml'. Supported formats: [json text markdown]",
		},
		{
			name:             "case sensitive - JSON uppercase",
			format:           "JSON",
			supportedFormats: supported,
			expectedError:    "unsupported output format 'JSON'. Supported formats: [json text markdown]",
		},
		{
			name:             "empty format string",
			format:           "",
			supportedFormats: supported,
			expectedError:    "unsupported output format ''. Supported formats: [json text markdown]",
		},
		{name: "empty supported formats - should allow all", format: "xml", supportedFormats: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supportedFormats)

			if tt.expectedError == "" {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Expected error but got none")
				return
			}
			if err.Error() != tt.expectedError {
				t.Errorf("Expected error '%s', got '%s'", tt.expectedError, err.Error())
			}
		})
	}
}

func TestValidateRetryBudget(t *testing.T) {
	for _, budget := range []int{0, 1, 5} {
		if err := ValidateRetryBudget(budget); err != nil {
			t.Errorf("budget %d: unexpected error %v", budget, err)
		}
	}
	if err := ValidateRetryBudget(-1); err == nil {
		t.Error("Expected error for negative budget")
	}
}

func BenchmarkValidateOutputFormat(b *testing.B) {
	supportedFormats := []string{"json", "text", "markdown"}

	b.Run("valid format", func(b *testing.B) {
		for b.Loop() {
			_ = ValidateOutputFormat("json", supportedFormats)
		}
	})

	b.Run("invalid format", func(b *testing.B) {
		for b.Loop() {
			_ = ValidateOutputFormat("xml", supportedFormats)
		}
	})
}
