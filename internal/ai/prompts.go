package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"vocatio/internal/types"
)

// DefaultSystemPrompt is the built-in system instruction for résumé rewrites.
const DefaultSystemPrompt = `You are an expert resume writer with a strict commitment to honesty and accuracy. Your core principles are:

- Use ONLY information that exists in the candidate record you are given
- NEVER invent, exaggerate, or misattribute skills, employers, titles, dates or achievements
- Company names, job titles, start dates and end dates are facts: copy them byte for byte
- Keep every experience and education entry, in the same order; never add or remove one
- Skills may be reordered or dropped, never added
- Only descriptions and the summary may be reworded to emphasize what the job asks for`

// DefaultUserPrompt is the built-in user prompt template. The first %s is the
// candidate record, the second the job record, both as JSON.
const DefaultUserPrompt = `Rewrite the candidate record below so it reads as strongly as possible for the target job, using ONLY existing information.

Return the complete candidate record as JSON with the same structure as the input.

CANDIDATE RECORD:
%s

TARGET JOB:
%s`

// buildUserPrompt renders the template with both records and, on a retry,
// appends the violations the previous proposal was rejected for.
func buildUserPrompt(template string, candidate *types.CandidateRecord, job *types.JobRecord, corrections []types.Violation) (string, error) {
	candidateJSON, err := json.MarshalIndent(candidate, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode candidate record: %w", err)
	}
	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode job record: %w", err)
	}

	prompt := fmt.Sprintf(template, candidateJSON, jobJSON)
	if len(corrections) == 0 {
		return prompt, nil
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\nYOUR PREVIOUS ANSWER WAS REJECTED. It changed or invented the following facts:\n")
	for _, v := range corrections {
		switch {
		case v.OriginalValue != "" && v.ProposedValue != "":
			fmt.Fprintf(&sb, "- %s: %q was changed to %q (%s)\n", v.Field, v.OriginalValue, v.ProposedValue, v.Reason)
		case v.ProposedValue != "":
			fmt.Fprintf(&sb, "- %s: %q does not exist in the candidate record (%s)\n", v.Field, v.ProposedValue, v.Reason)
		default:
			fmt.Fprintf(&sb, "- %s: %q must be kept (%s)\n", v.Field, v.OriginalValue, v.Reason)
		}
	}
	sb.WriteString("Restore the original values and try again. Use ONLY existing information.")
	return sb.String(), nil
}

// resolvePrompt selects the correct prompt string based on a clear priority order:
// 1. A prompt loaded from a file.
// 2. A prompt defined directly in the configuration.
// 3. A hardcoded default prompt.
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}
