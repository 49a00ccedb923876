package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"vocatio/internal/optimizer"
	"vocatio/internal/types"
)

// Formatter interface for different output formats.
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters.
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters.
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "MatchingReport", &MatchTextFormatter{})
	registry.RegisterFormatter("markdown", "MatchingReport", &MatchMarkdownFormatter{})
	registry.RegisterFormatter("text", "VerificationResult", &VerifyTextFormatter{})
	registry.RegisterFormatter("markdown", "VerificationResult", &VerifyMarkdownFormatter{})
	registry.RegisterFormatter("text", "Outcome", &OutcomeTextFormatter{})
	registry.RegisterFormatter("markdown", "Outcome", &OutcomeMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type.
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter.
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted.
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case *types.MatchingReport:
		return "MatchingReport"
	case *types.VerificationResult:
		return "VerificationResult"
	case *optimizer.Outcome:
		return "Outcome"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type.
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// MatchTextFormatter handles text formatting for matching reports.
type MatchTextFormatter struct{}

func (f *MatchTextFormatter) Format(data any) (string, error) {
	report, ok := data.(*types.MatchingReport)
	if !ok {
		return "", fmt.Errorf("expected *MatchingReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== SKILL MATCH ===\n")
	fmt.Fprintf(&output, "Score: %d/100\n\n", report.MatchingScore)

	if len(report.Matches) > 0 {
		fmt.Fprintf(&output, "%-30s %-5s %-5s %s\n", "SKILL", "CV", "JOB", "RELEVANT")
		for _, m := range report.Matches {
			fmt.Fprintf(&output, "%-30s %-5s %-5s %s\n", m.Skill, yesNo(m.InCV), yesNo(m.InJob), yesNo(m.Relevant))
		}
		output.WriteString("\n")
	}

	output.WriteString(report.AnalysisText)
	output.WriteString("\n")
	return output.String(), nil
}

func (f *MatchTextFormatter) SupportedType() string {
	return "MatchingReport"
}

// MatchMarkdownFormatter handles markdown formatting for matching reports.
type MatchMarkdownFormatter struct{}

func (f *MatchMarkdownFormatter) Format(data any) (string, error) {
	report, ok := data.(*types.MatchingReport)
	if !ok {
		return "", fmt.Errorf("expected *MatchingReport, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Skill Match\n\n")
	fmt.Fprintf(&output, "**Score:** %d/100\n\n", report.MatchingScore)

	if len(report.Matches) > 0 {
		output.WriteString("| Skill | In CV | In Job | Relevant |\n")
		output.WriteString("|-------|-------|--------|----------|\n")
		for _, m := range report.Matches {
			fmt.Fprintf(&output, "| %s | %s | %s | %s |\n", m.Skill, check(m.InCV), check(m.InJob), check(m.Relevant))
		}
		output.WriteString("\n")
	}

	output.WriteString("## Analysis\n\n")
	output.WriteString(report.AnalysisText)
	output.WriteString("\n")
	return output.String(), nil
}

func (f *MatchMarkdownFormatter) SupportedType() string {
	return "MatchingReport"
}

// VerifyTextFormatter handles text formatting for verification results.
type VerifyTextFormatter struct{}

func (f *VerifyTextFormatter) Format(data any) (string, error) {
	result, ok := data.(*types.VerificationResult)
	if !ok {
		return "", fmt.Errorf("expected *VerificationResult, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== INTEGRITY CHECK ===\n\n")
	if result.Valid {
		output.WriteString("No violations found.\n")
		return output.String(), nil
	}

	writeViolationsText(&output, result.Violations)
	return output.String(), nil
}

func (f *VerifyTextFormatter) SupportedType() string {
	return "VerificationResult"
}

// VerifyMarkdownFormatter handles markdown formatting for verification results.
type VerifyMarkdownFormatter struct{}

func (f *VerifyMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(*types.VerificationResult)
	if !ok {
		return "", fmt.Errorf("expected *VerificationResult, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Integrity Check\n\n")
	if result.Valid {
		output.WriteString("No violations found.\n")
		return output.String(), nil
	}

	writeViolationsMarkdown(&output, result.Violations)
	return output.String(), nil
}

func (f *VerifyMarkdownFormatter) SupportedType() string {
	return "VerificationResult"
}

// OutcomeTextFormatter handles text formatting for optimization outcomes.
type OutcomeTextFormatter struct{}

func (f *OutcomeTextFormatter) Format(data any) (string, error) {
	outcome, ok := data.(*optimizer.Outcome)
	if !ok {
		return "", fmt.Errorf("expected *Outcome, got %T", data)
	}

	var output strings.Builder
	output.WriteString("=== OPTIMIZATION ===\n")
	fmt.Fprintf(&output, "State: %s\n", outcome.State)
	fmt.Fprintf(&output, "Attempts: %d\n", outcome.Attempts)
	if outcome.TokenUsage != nil {
		fmt.Fprintf(&output, "Tokens: %d (input %d, output %d)\n",
			outcome.TokenUsage.TotalTokens, outcome.TokenUsage.InputTokens, outcome.TokenUsage.OutputTokens)
	}
	output.WriteString("\n")

	if !outcome.Accepted() {
		fmt.Fprintf(&output, "Reason: %s\n", outcome.ReasonCode)
		if outcome.Message != "" {
			fmt.Fprintf(&output, "Message: %s\n", outcome.Message)
		}
		if len(outcome.Violations) > 0 {
			output.WriteString("\n")
			writeViolationsText(&output, outcome.Violations)
		}
		return output.String(), nil
	}

	opt := outcome.Optimized
	fmt.Fprintf(&output, "Optimized record %s (version %d of %s)\n\n", opt.ID, opt.Version, opt.SourceID)
	writeRecordText(&output, &opt.Record)
	if opt.Metrics != nil {
		output.WriteString("\n")
		writeMetricsText(&output, opt.Metrics)
	}
	return output.String(), nil
}

func (f *OutcomeTextFormatter) SupportedType() string {
	return "Outcome"
}

// OutcomeMarkdownFormatter handles markdown formatting for optimization outcomes.
type OutcomeMarkdownFormatter struct{}

func (f *OutcomeMarkdownFormatter) Format(data any) (string, error) {
	outcome, ok := data.(*optimizer.Outcome)
	if !ok {
		return "", fmt.Errorf("expected *Outcome, got %T", data)
	}

	var output strings.Builder
	if !outcome.Accepted() {
		output.WriteString("# Optimization Rejected\n\n")
		fmt.Fprintf(&output, "**Reason:** %s  \n", outcome.ReasonCode)
		fmt.Fprintf(&output, "**Attempts:** %d\n\n", outcome.Attempts)
		if outcome.Message != "" {
			output.WriteString(outcome.Message)
			output.WriteString("\n\n")
		}
		if len(outcome.Violations) > 0 {
			writeViolationsMarkdown(&output, outcome.Violations)
		}
		return output.String(), nil
	}

	rec := &outcome.Optimized.Record
	fmt.Fprintf(&output, "# %s\n\n", rec.PersonalInfo.Name)
	if rec.PersonalInfo.Summary != "" {
		output.WriteString(rec.PersonalInfo.Summary)
		output.WriteString("\n\n")
	}

	if len(rec.Experiences) > 0 {
		output.WriteString("## Experience\n\n")
		for _, exp := range rec.Experiences {
			fmt.Fprintf(&output, "### %s, %s\n", exp.Title, exp.Company)
			fmt.Fprintf(&output, "*%s - %s*\n\n", exp.StartDate, endDate(exp.EndDate))
			output.WriteString(exp.Description)
			output.WriteString("\n\n")
		}
	}

	if len(rec.Skills) > 0 {
		output.WriteString("## Skills\n\n")
		output.WriteString(strings.Join(rec.Skills, ", "))
		output.WriteString("\n\n")
	}

	if len(rec.Education) > 0 {
		output.WriteString("## Education\n\n")
		for _, edu := range rec.Education {
			fmt.Fprintf(&output, "- **%s**, %s\n", edu.Degree, edu.Institution)
		}
		output.WriteString("\n")
	}

	for _, s := range rec.Sections {
		fmt.Fprintf(&output, "## %s\n\n%s\n\n", s.Title, s.Content)
	}

	if m := outcome.Optimized.Metrics; m != nil {
		writeMetricsMarkdown(&output, m)
	}

	fmt.Fprintf(&output, "---\nVersion %d of %s, accepted after %d attempt(s)\n",
		outcome.Optimized.Version, outcome.Optimized.SourceID, outcome.Attempts)
	return output.String(), nil
}

func (f *OutcomeMarkdownFormatter) SupportedType() string {
	return "Outcome"
}

func writeViolationsText(output *strings.Builder, violations []types.Violation) {
	fmt.Fprintf(output, "=== VIOLATIONS (%d) ===\n\n", len(violations))
	for i, v := range violations {
		fmt.Fprintf(output, "%d. %s [%s]\n", i+1, v.Field, v.Reason)
		if v.OriginalValue != "" {
			fmt.Fprintf(output, "   Original: %s\n", v.OriginalValue)
		}
		if v.ProposedValue != "" {
			fmt.Fprintf(output, "   Proposed: %s\n", v.ProposedValue)
		}
	}
}

func writeViolationsMarkdown(output *strings.Builder, violations []types.Violation) {
	fmt.Fprintf(output, "## Violations (%d)\n\n", len(violations))
	output.WriteString("| Field | Reason | Original | Proposed |\n")
	output.WriteString("|-------|--------|----------|----------|\n")
	for _, v := range violations {
		fmt.Fprintf(output, "| `%s` | %s | %s | %s |\n", v.Field, v.Reason, v.OriginalValue, v.ProposedValue)
	}
}

func writeMetricsText(output *strings.Builder, m *types.OptimizationMetrics) {
	output.WriteString("=== COMPARISON ===\n")
	fmt.Fprintf(output, "Match score: %d%% -> %d%% (%+d)\n", m.Before.MatchingScore, m.After.MatchingScore, m.ScoreDelta)
	if m.Keywords.Total > 0 {
		fmt.Fprintf(output, "Job keywords in text: %d -> %d of %d\n", m.Keywords.Before, m.Keywords.After, m.Keywords.Total)
	}
	if len(m.Keywords.Gained) > 0 {
		fmt.Fprintf(output, "Gained: %s\n", strings.Join(m.Keywords.Gained, ", "))
	}
	if len(m.Keywords.Dropped) > 0 {
		fmt.Fprintf(output, "Dropped: %s\n", strings.Join(m.Keywords.Dropped, ", "))
	}

	mod := m.Modifications
	fmt.Fprintf(output, "Modified blocks: %d of %d (%.0f%% changed in length)\n",
		mod.ModifiedBlocks, mod.TotalBlocks, mod.ChangePercentage)
	for _, change := range mod.Changes {
		fmt.Fprintf(output, "  %s: %d -> %d chars\n", change.Field, change.OriginalChars, change.OptimizedChars)
	}
}

func writeMetricsMarkdown(output *strings.Builder, m *types.OptimizationMetrics) {
	output.WriteString("## Before / After\n\n")
	output.WriteString("| Metric | Before | After |\n")
	output.WriteString("|--------|--------|-------|\n")
	fmt.Fprintf(output, "| Match score | %d%% | %d%% |\n", m.Before.MatchingScore, m.After.MatchingScore)
	if m.Keywords.Total > 0 {
		fmt.Fprintf(output, "| Job keywords | %d/%d | %d/%d |\n",
			m.Keywords.Before, m.Keywords.Total, m.Keywords.After, m.Keywords.Total)
	}
	output.WriteString("\n")

	mod := m.Modifications
	fmt.Fprintf(output, "**Modified blocks:** %d of %d\n\n", mod.ModifiedBlocks, mod.TotalBlocks)
	for _, change := range mod.Changes {
		fmt.Fprintf(output, "- `%s`: %d → %d chars\n", change.Field, change.OriginalChars, change.OptimizedChars)
	}
	if len(mod.Changes) > 0 {
		output.WriteString("\n")
	}
}

func writeRecordText(output *strings.Builder, rec *types.CandidateRecord) {
	output.WriteString(rec.PersonalInfo.Name)
	output.WriteString("\n")
	if rec.PersonalInfo.Summary != "" {
		output.WriteString(rec.PersonalInfo.Summary)
		output.WriteString("\n")
	}
	output.WriteString("\n")

	for _, exp := range rec.Experiences {
		fmt.Fprintf(output, "%s at %s (%s - %s)\n", exp.Title, exp.Company, exp.StartDate, endDate(exp.EndDate))
		fmt.Fprintf(output, "  %s\n\n", exp.Description)
	}

	if len(rec.Skills) > 0 {
		fmt.Fprintf(output, "Skills: %s\n", strings.Join(rec.Skills, ", "))
	}
}

func endDate(d *string) string {
	if d == nil {
		return "present"
	}
	return *d
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func check(b bool) string {
	if b {
		return "✓"
	}
	return ""
}

// GlobalRegistry is the shared registry used by the CLI output handler.
var GlobalRegistry = NewFormatterRegistry()
