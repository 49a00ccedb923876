package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateCloneIsDeep(t *testing.T) {
	original := &CandidateRecord{
		ID: "c1",
		Experiences: []Experience{
			{Company: "Acme", Title: "Engineer", StartDate: "2020-01", EndDate: StringPtr("2021-01")},
		},
		Skills:    []string{"Go"},
		Education: []Education{{Institution: "MIT", EndDate: StringPtr("2019")}},
		Sections:  []Section{{Title: "Projects", Content: "x"}},
	}

	clone := original.Clone()
	*clone.Experiences[0].EndDate = "2030-01"
	clone.Experiences[0].Company = "Other"
	clone.Skills[0] = "Rust"
	*clone.Education[0].EndDate = "2000"
	clone.Sections[0].Content = "y"

	assert.Equal(t, "2021-01", *original.Experiences[0].EndDate)
	assert.Equal(t, "Acme", original.Experiences[0].Company)
	assert.Equal(t, "Go", original.Skills[0])
	assert.Equal(t, "2019", *original.Education[0].EndDate)
	assert.Equal(t, "x", original.Sections[0].Content)
}

func TestNilClone(t *testing.T) {
	var c *CandidateRecord
	var j *JobRecord
	assert.Nil(t, c.Clone())
	assert.Nil(t, j.Clone())
}

func TestJobCloneIsDeep(t *testing.T) {
	job := &JobRecord{Skills: []string{"Go"}, Requirements: []string{"Go"}}
	clone := job.Clone()
	clone.Skills[0] = "Rust"
	clone.Requirements = append(clone.Requirements, "Kubernetes")

	assert.Equal(t, []string{"Go"}, job.Skills)
	assert.Equal(t, []string{"Go"}, job.Requirements)
}

func TestTokenUsageAdd(t *testing.T) {
	total := &TokenUsage{}
	total.Add(&TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15})
	total.Add(nil)
	total.Add(&TokenUsage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2})

	assert.Equal(t, TokenUsage{InputTokens: 11, OutputTokens: 6, TotalTokens: 17}, *total)
}
