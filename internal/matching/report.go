package matching

import (
	"fmt"
	"strings"

	"vocatio/internal/types"
)

// BuildReport computes the full matching report for a candidate and a job.
func BuildReport(candidate *types.CandidateRecord, job *types.JobRecord) *types.MatchingReport {
	return defaultMatcher.BuildReport(candidate, job)
}

// BuildReport computes the full matching report for a candidate and a job.
// Nil records are treated as having no skills.
func (m *Matcher) BuildReport(candidate *types.CandidateRecord, job *types.JobRecord) *types.MatchingReport {
	var cvSkills, jobSkills, requirements []string
	if candidate != nil {
		cvSkills = candidate.Skills
	}
	if job != nil {
		jobSkills = job.Skills
		requirements = job.Requirements
	}

	matches := m.ComputeMatches(cvSkills, jobSkills, requirements)
	score := Score(matches)

	return &types.MatchingReport{
		MatchingScore: score,
		Matches:       matches,
		AnalysisText:  analysisText(matches, score, job),
	}
}

func analysisText(matches []types.SkillMatch, score int, job *types.JobRecord) string {
	var covered, missing, extra []string
	for _, match := range matches {
		switch {
		case match.Relevant && match.InCV:
			covered = append(covered, match.Skill)
		case match.Relevant:
			missing = append(missing, match.Skill)
		case match.InJob && !match.InCV:
			extra = append(extra, match.Skill)
		}
	}

	var sb strings.Builder
	if job != nil && job.JobTitle != "" {
		sb.WriteString(fmt.Sprintf("Position: %s", job.JobTitle))
		if job.CompanyName != "" {
			sb.WriteString(fmt.Sprintf(" at %s", job.CompanyName))
		}
		sb.WriteString(". ")
	}

	relevant := len(covered) + len(missing)
	if relevant == 0 {
		sb.WriteString("The job lists no required skills, so no match score could be computed.")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Matched %d of %d required skills (%d%%).", len(covered), relevant, score))
	if len(covered) > 0 {
		sb.WriteString(" Present: " + strings.Join(covered, ", ") + ".")
	}
	if len(missing) > 0 {
		sb.WriteString(" Missing: " + strings.Join(missing, ", ") + ".")
	}
	if len(extra) > 0 {
		sb.WriteString(" Also mentioned by the job but not in the CV: " + strings.Join(extra, ", ") + ".")
	}
	return sb.String()
}
