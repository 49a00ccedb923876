// Package matching classifies candidate skills against a job posting.
//
// The presence test is deliberately loose: two skills match when their
// normalized forms are equal or one contains the other, so "React" matches
// "React Native" and "Go" matches "Golang" (and also "MongoDB"). The integrity
// checks rely on the same test.
package matching

import (
	"math"
	"strings"

	"vocatio/internal/types"
)

// Matcher carries an optional alias table. The zero value applies the plain
// normalized substring test.
type Matcher struct {
	aliases map[string]string
}

var defaultMatcher = &Matcher{}

// Normalize lower-cases and trims a skill string.
func Normalize(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

// IsPresent reports whether skill matches any member of collection.
func IsPresent(skill string, collection []string) bool {
	return defaultMatcher.IsPresent(skill, collection)
}

// ComputeMatches classifies every skill of the cv/job union.
func ComputeMatches(cvSkills, jobSkills, jobRequirements []string) []types.SkillMatch {
	return defaultMatcher.ComputeMatches(cvSkills, jobSkills, jobRequirements)
}

// canonical normalizes a skill and resolves it through the alias table.
func (m *Matcher) canonical(skill string) string {
	n := Normalize(skill)
	if m == nil || m.aliases == nil {
		return n
	}
	if c, ok := m.aliases[n]; ok {
		return c
	}
	return n
}

// IsPresent reports whether skill equals, contains, or is contained in a
// member of collection after normalization. The containment checks need both
// sides non-empty, so a blank skill matches only a blank member.
func (m *Matcher) IsPresent(skill string, collection []string) bool {
	needle := m.canonical(skill)
	for _, member := range collection {
		candidate := m.canonical(member)
		if needle == candidate {
			return true
		}
		if needle == "" || candidate == "" {
			continue
		}
		if strings.Contains(candidate, needle) || strings.Contains(needle, candidate) {
			return true
		}
	}
	return false
}

// ComputeMatches walks cvSkills, then jobSkills, then jobRequirements and emits
// one SkillMatch per distinct normalized skill in first-appearance order. When
// the job names a skill, the job's spelling is reported.
func (m *Matcher) ComputeMatches(cvSkills, jobSkills, jobRequirements []string) []types.SkillMatch {
	type entry struct {
		display string
		fromJob bool
	}

	var order []string
	seen := make(map[string]*entry)

	add := func(skills []string, fromJob bool) {
		for _, s := range skills {
			key := m.canonical(s)
			if key == "" {
				continue
			}
			if e, ok := seen[key]; ok {
				if fromJob && !e.fromJob {
					e.display = strings.TrimSpace(s)
					e.fromJob = true
				}
				continue
			}
			seen[key] = &entry{display: strings.TrimSpace(s), fromJob: fromJob}
			order = append(order, key)
		}
	}

	add(cvSkills, false)
	add(jobSkills, true)
	add(jobRequirements, true)

	matches := make([]types.SkillMatch, 0, len(order))
	for _, key := range order {
		skill := seen[key].display
		inJob := m.IsPresent(skill, jobSkills) || m.IsPresent(skill, jobRequirements)
		matches = append(matches, types.SkillMatch{
			Skill:    skill,
			InCV:     m.IsPresent(skill, cvSkills),
			InJob:    inJob,
			Relevant: inJob && m.IsPresent(skill, jobRequirements),
		})
	}
	return matches
}

// Score is the rounded percentage of relevant skills present in the CV. It is
// 0 when nothing is relevant.
func Score(matches []types.SkillMatch) int {
	relevant, covered := 0, 0
	for _, match := range matches {
		if !match.Relevant {
			continue
		}
		relevant++
		if match.InCV {
			covered++
		}
	}
	if relevant == 0 {
		return 0
	}

	score := int(math.Round(100 * float64(covered) / float64(max(1, relevant))))
	return min(100, max(0, score))
}
