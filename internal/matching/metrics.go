package matching

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"vocatio/internal/types"
)

// textBlock is one rewritable piece of a candidate record.
type textBlock struct {
	field string
	text  string
}

// CompareRecords measures an accepted rewrite against its source for job.
func CompareRecords(original, optimized *types.CandidateRecord, job *types.JobRecord) *types.OptimizationMetrics {
	return defaultMatcher.CompareRecords(original, optimized, job)
}

// CompareRecords builds the before and after matching reports, the keyword
// coverage of the rewritable text and per-block modification stats.
func (m *Matcher) CompareRecords(original, optimized *types.CandidateRecord, job *types.JobRecord) *types.OptimizationMetrics {
	before := m.BuildReport(original, job)
	after := m.BuildReport(optimized, job)

	return &types.OptimizationMetrics{
		Before:        before,
		After:         after,
		ScoreDelta:    after.MatchingScore - before.MatchingScore,
		Keywords:      keywordCoverage(original, optimized, job),
		Modifications: modificationStats(textBlocks(original), textBlocks(optimized)),
	}
}

// textBlocks lists the fields a rewrite may change freely. Skills are one block.
func textBlocks(record *types.CandidateRecord) []textBlock {
	if record == nil {
		return nil
	}
	blocks := []textBlock{{field: "personalInfo.summary", text: record.PersonalInfo.Summary}}
	for i, exp := range record.Experiences {
		blocks = append(blocks, textBlock{field: fmt.Sprintf("experiences[%d].description", i), text: exp.Description})
	}
	for i, section := range record.Sections {
		blocks = append(blocks, textBlock{field: fmt.Sprintf("sections[%d].content", i), text: section.Content})
	}
	blocks = append(blocks, textBlock{field: "skills", text: strings.Join(record.Skills, ", ")})
	return blocks
}

func modificationStats(original, optimized []textBlock) types.ModificationStats {
	proposed := make(map[string]string, len(optimized))
	for _, block := range optimized {
		proposed[block.field] = block.text
	}

	var stats types.ModificationStats
	charDiff := 0
	for _, block := range original {
		if block.text == "" {
			continue
		}
		stats.TotalBlocks++

		text, ok := proposed[block.field]
		if !ok || text == block.text {
			continue
		}
		before, after := utf8.RuneCountInString(block.text), utf8.RuneCountInString(text)
		stats.ModifiedBlocks++
		stats.OriginalChars += before
		stats.OptimizedChars += after
		charDiff += abs(after - before)
		stats.Changes = append(stats.Changes, types.SectionChange{
			Field:          block.field,
			OriginalChars:  before,
			OptimizedChars: after,
		})
	}

	if stats.TotalBlocks > 0 {
		stats.ModificationRate = round2(float64(stats.ModifiedBlocks) / float64(stats.TotalBlocks))
	}
	if stats.OriginalChars > 0 {
		stats.ChangePercentage = round2(100 * float64(charDiff) / float64(stats.OriginalChars))
	}
	return stats
}

// keywordCoverage checks each job skill and requirement, case-insensitively,
// against the joined rewritable text of both records.
func keywordCoverage(original, optimized *types.CandidateRecord, job *types.JobRecord) types.KeywordCoverage {
	var coverage types.KeywordCoverage
	if job == nil {
		return coverage
	}

	beforeText, afterText := corpus(original), corpus(optimized)
	seen := make(map[string]bool)
	for _, keyword := range append(append([]string{}, job.Skills...), job.Requirements...) {
		key := Normalize(keyword)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		coverage.Total++

		inBefore, inAfter := strings.Contains(beforeText, key), strings.Contains(afterText, key)
		if inBefore {
			coverage.Before++
		}
		if inAfter {
			coverage.After++
		}
		switch {
		case inAfter && !inBefore:
			coverage.Gained = append(coverage.Gained, keyword)
		case inBefore && !inAfter:
			coverage.Dropped = append(coverage.Dropped, keyword)
		}
	}
	return coverage
}

func corpus(record *types.CandidateRecord) string {
	var sb strings.Builder
	for _, block := range textBlocks(record) {
		sb.WriteString(strings.ToLower(block.text))
		sb.WriteString("\n")
	}
	return sb.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
