package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocatio/internal/types"
)

func TestCompareRecords(t *testing.T) {
	original := &types.CandidateRecord{
		PersonalInfo: types.PersonalInfo{Name: "Jane Doe", Summary: "Engineer"},
		Experiences: []types.Experience{
			{Company: "Acme", Title: "Engineer", StartDate: "2020-01", Description: "Built X"},
			{Company: "Initech", Title: "Intern", StartDate: "2019-06", Description: "Wrote reports"},
		},
		Skills: []string{"Go", "Docker", "React"},
	}
	optimized := original.Clone()
	optimized.Experiences[0].Description = "Built X services in Go"
	optimized.Skills = []string{"Go", "Docker"}
	job := &types.JobRecord{JobTitle: "Backend Engineer", Skills: []string{"Go", "React"}, Requirements: []string{"go", "React"}}

	m := CompareRecords(original, optimized, job)
	require.NotNil(t, m)

	assert.Equal(t, 100, m.Before.MatchingScore)
	assert.Equal(t, 50, m.After.MatchingScore)
	assert.Equal(t, -50, m.ScoreDelta)

	assert.Equal(t, types.KeywordCoverage{Total: 2, Before: 2, After: 1, Dropped: []string{"React"}}, m.Keywords)

	mod := m.Modifications
	assert.Equal(t, 2, mod.ModifiedBlocks)
	assert.Equal(t, 4, mod.TotalBlocks)
	assert.Equal(t, 0.5, mod.ModificationRate)
	assert.Equal(t, 24, mod.OriginalChars)
	assert.Equal(t, 32, mod.OptimizedChars)
	assert.Equal(t, 91.67, mod.ChangePercentage)
	assert.Equal(t, []types.SectionChange{
		{Field: "experiences[0].description", OriginalChars: 7, OptimizedChars: 22},
		{Field: "skills", OriginalChars: 17, OptimizedChars: 10},
	}, mod.Changes)
}

func TestCompareRecordsUnchanged(t *testing.T) {
	original := &types.CandidateRecord{
		Experiences: []types.Experience{{Company: "Acme", Title: "Engineer", StartDate: "2020-01", Description: "Built X"}},
		Skills:      []string{"Go"},
	}

	m := CompareRecords(original, original.Clone(), nil)
	assert.Zero(t, m.ScoreDelta)
	assert.Zero(t, m.Keywords.Total)
	assert.Equal(t, 2, m.Modifications.TotalBlocks)
	assert.Zero(t, m.Modifications.ModifiedBlocks)
	assert.Zero(t, m.Modifications.ChangePercentage)
	assert.Empty(t, m.Modifications.Changes)
}

func TestCompareRecordsGainedKeyword(t *testing.T) {
	original := &types.CandidateRecord{
		PersonalInfo: types.PersonalInfo{Summary: "Backend developer"},
		Skills:       []string{"PostgreSQL"},
	}
	optimized := original.Clone()
	optimized.PersonalInfo.Summary = "Backend developer focused on PostgreSQL performance"
	job := &types.JobRecord{Requirements: []string{"PostgreSQL", "Kafka"}}

	m := NewMatcher(nil).CompareRecords(original, optimized, job)
	assert.Equal(t, 1, m.Keywords.Before, "skills count as text")
	assert.Equal(t, 1, m.Keywords.After)
	assert.Empty(t, m.Keywords.Gained)
	assert.Equal(t, []types.SectionChange{{Field: "personalInfo.summary", OriginalChars: 17, OptimizedChars: 51}}, m.Modifications.Changes)
}
