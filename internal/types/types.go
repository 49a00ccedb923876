package types

import (
	"slices"
	"time"
)

// PersonalInfo holds the candidate's identity facts and summary.
type PersonalInfo struct {
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone    string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Summary  string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Experience is one employment entry. Company, Title, StartDate and EndDate are
// protected facts; only Description may be rewritten.
type Experience struct {
	Company     string  `json:"company" yaml:"company" validate:"required"`
	Title       string  `json:"title" yaml:"title" validate:"required"`
	StartDate   string  `json:"startDate" yaml:"startDate" validate:"required"`
	EndDate     *string `json:"endDate" yaml:"endDate"` // nil means current position
	Description string  `json:"description" yaml:"description"`
}

// Education is one education entry with the same protection rules as Experience.
type Education struct {
	Institution string  `json:"institution" yaml:"institution" validate:"required"`
	Degree      string  `json:"degree" yaml:"degree"`
	StartDate   string  `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate     *string `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// Section is a free-text part of the résumé (projects, certifications, languages...).
type Section struct {
	Title   string `json:"title" yaml:"title" validate:"required"`
	Content string `json:"content" yaml:"content"`
}

// CandidateRecord is the ground-truth résumé extracted for a session.
type CandidateRecord struct {
	ID           string       `json:"id,omitempty" yaml:"id,omitempty"`
	PersonalInfo PersonalInfo `json:"personalInfo" yaml:"personalInfo"`
	Experiences  []Experience `json:"experiences" yaml:"experiences" validate:"dive"`
	Skills       []string     `json:"skills" yaml:"skills"`
	Education    []Education  `json:"education,omitempty" yaml:"education,omitempty" validate:"dive"`
	Sections     []Section    `json:"sections,omitempty" yaml:"sections,omitempty" validate:"dive"`
}

// Clone returns a deep copy of the record.
func (c *CandidateRecord) Clone() *CandidateRecord {
	if c == nil {
		return nil
	}
	out := *c
	out.Experiences = make([]Experience, len(c.Experiences))
	for i, exp := range c.Experiences {
		exp.EndDate = cloneString(exp.EndDate)
		out.Experiences[i] = exp
	}
	out.Education = nil
	if c.Education != nil {
		out.Education = make([]Education, len(c.Education))
		for i, edu := range c.Education {
			edu.EndDate = cloneString(edu.EndDate)
			out.Education[i] = edu
		}
	}
	out.Skills = slices.Clone(c.Skills)
	out.Sections = slices.Clone(c.Sections)
	return &out
}

// JobRecord is the extracted job posting.
type JobRecord struct {
	ID           string   `json:"id,omitempty" yaml:"id,omitempty"`
	CompanyName  string   `json:"companyName" yaml:"companyName"`
	JobTitle     string   `json:"jobTitle" yaml:"jobTitle"`
	JobLocation  string   `json:"jobLocation" yaml:"jobLocation"`
	Skills       []string `json:"skills" yaml:"skills"`
	Requirements []string `json:"requirements" yaml:"requirements"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Clone returns a deep copy of the record.
func (j *JobRecord) Clone() *JobRecord {
	if j == nil {
		return nil
	}
	out := *j
	out.Skills = slices.Clone(j.Skills)
	out.Requirements = slices.Clone(j.Requirements)
	return &out
}

// SkillMatch classifies one skill against the candidate and the job.
type SkillMatch struct {
	Skill    string `json:"skill"`
	InCV     bool   `json:"inCV"`
	InJob    bool   `json:"inJob"`
	Relevant bool   `json:"relevant"`
}

// MatchingReport is derived from a (CandidateRecord, JobRecord) pair.
type MatchingReport struct {
	MatchingScore int          `json:"matchingScore"`
	Matches       []SkillMatch `json:"matches"`
	AnalysisText  string       `json:"analysisText"`
}

// Violation describes one rejected change in a proposed record.
type Violation struct {
	Field         string `json:"field"`
	OriginalValue string `json:"originalValue"`
	ProposedValue string `json:"proposedValue"`
	Reason        string `json:"reason"`
}

// Violation reasons.
const (
	ReasonProtectedFieldChanged = "protected_field_changed"
	ReasonUnverifiedSkill       = "unverified_skill"
	ReasonExperienceAdded       = "experience_added"
	ReasonExperienceRemoved     = "experience_removed"
	ReasonEducationAdded        = "education_added"
	ReasonEducationRemoved      = "education_removed"
	ReasonNameSubstituted       = "name_substituted"
)

// VerificationResult is the outcome of one verification call.
type VerificationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// TokenUsage represents token usage information from oracle responses.
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other *TokenUsage) {
	if u == nil || other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// OptimizedCandidateRecord is an accepted rewrite. It never replaces its source;
// SourceID references the CandidateRecord it was derived from.
type OptimizedCandidateRecord struct {
	ID         string               `json:"id"`
	SourceID   string               `json:"sourceId"`
	JobID      string               `json:"jobId,omitempty"`
	Version    int                  `json:"version"`
	CreatedAt  time.Time            `json:"createdAt"`
	Record     CandidateRecord      `json:"record"`
	Attempts   int                  `json:"attempts"`
	TokenUsage *TokenUsage          `json:"tokenUsage,omitempty"`
	Metrics    *OptimizationMetrics `json:"metrics,omitempty"`
}

// OptimizationMetrics is the before/after comparison of an accepted rewrite.
type OptimizationMetrics struct {
	Before        *MatchingReport   `json:"before"`
	After         *MatchingReport   `json:"after"`
	ScoreDelta    int               `json:"scoreDelta"`
	Keywords      KeywordCoverage   `json:"keywords"`
	Modifications ModificationStats `json:"modifications"`
}

// KeywordCoverage counts the job's skills and requirements mentioned anywhere
// in a record's rewritable text.
type KeywordCoverage struct {
	Total   int      `json:"total"`
	Before  int      `json:"before"`
	After   int      `json:"after"`
	Gained  []string `json:"gained,omitempty"`
	Dropped []string `json:"dropped,omitempty"`
}

// ModificationStats summarises how much rewritable text changed.
type ModificationStats struct {
	ModifiedBlocks   int             `json:"modifiedBlocks"`
	TotalBlocks      int             `json:"totalBlocks"`
	ModificationRate float64         `json:"modificationRate"`
	OriginalChars    int             `json:"originalChars"`
	OptimizedChars   int             `json:"optimizedChars"`
	ChangePercentage float64         `json:"changePercentage"`
	Changes          []SectionChange `json:"changes,omitempty"`
}

// SectionChange is one rewritten block, addressed like a violation field.
type SectionChange struct {
	Field          string `json:"field"`
	OriginalChars  int    `json:"originalChars"`
	OptimizedChars int    `json:"optimizedChars"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// DerefString returns the pointed-to value or "" for nil.
func DerefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
