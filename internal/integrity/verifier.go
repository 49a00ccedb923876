// Package integrity checks a proposed résumé rewrite against the facts it was
// derived from. Every check is pure and safe for concurrent use.
package integrity

import (
	"fmt"

	"vocatio/internal/matching"
	"vocatio/internal/types"
)

// Options tunes the record-level checks.
type Options struct {
	// NameHeuristic enables detection of company or person names swapped out
	// inside rewritten descriptions.
	NameHeuristic bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{NameHeuristic: true}
}

// Verifier runs the integrity checks with a given skill matcher.
type Verifier struct {
	matcher *matching.Matcher
	opts    Options
}

// NewVerifier creates a verifier. A nil matcher uses the plain presence test.
func NewVerifier(matcher *matching.Matcher, opts Options) *Verifier {
	if matcher == nil {
		matcher = matching.NewMatcher(nil)
	}
	return &Verifier{matcher: matcher, opts: opts}
}

// Matcher returns the skill matcher the verifier checks claims with.
func (v *Verifier) Matcher() *matching.Matcher {
	return v.matcher
}

var defaultVerifier = NewVerifier(nil, DefaultOptions())

// VerifyExperience compares the protected fields of one experience entry.
func VerifyExperience(original, proposed types.Experience) types.VerificationResult {
	return result(experienceViolations("", original, proposed))
}

// VerifySkillClaim reports whether skill is backed by factSkills.
func VerifySkillClaim(skill string, factSkills []string) bool {
	return matching.IsPresent(skill, factSkills)
}

// VerifyRecord runs every check on a proposed record with default options.
func VerifyRecord(original, proposed *types.CandidateRecord) types.VerificationResult {
	return defaultVerifier.VerifyRecord(original, proposed)
}

// VerifySkillClaim reports whether skill is backed by factSkills.
func (v *Verifier) VerifySkillClaim(skill string, factSkills []string) bool {
	return v.matcher.IsPresent(skill, factSkills)
}

// VerifyRecord aggregates the experience, education, identity and skill checks.
// The result is valid only when no check produced a violation.
func (v *Verifier) VerifyRecord(original, proposed *types.CandidateRecord) types.VerificationResult {
	if original == nil || proposed == nil {
		return result([]types.Violation{{
			Field:  "record",
			Reason: "record_missing",
		}})
	}

	var violations []types.Violation
	violations = append(violations, identityViolations(original.PersonalInfo, proposed.PersonalInfo)...)
	violations = append(violations, v.experienceListViolations(original, proposed)...)
	violations = append(violations, educationListViolations(original.Education, proposed.Education)...)
	violations = append(violations, v.skillViolations(original.Skills, proposed.Skills)...)

	return result(violations)
}

func (v *Verifier) experienceListViolations(original, proposed *types.CandidateRecord) []types.Violation {
	var violations []types.Violation

	var names []string
	var vocabulary map[string]bool
	if v.opts.NameHeuristic {
		names = knownNames(original)
		vocabulary = recordVocabulary(original)
	}

	shared := min(len(original.Experiences), len(proposed.Experiences))
	for i := range shared {
		prefix := fmt.Sprintf("experiences[%d].", i)
		orig, prop := original.Experiences[i], proposed.Experiences[i]
		violations = append(violations, experienceViolations(prefix, orig, prop)...)
		if v.opts.NameHeuristic {
			if sub, ok := substitutedName(orig.Description, prop.Description, names, vocabulary); ok {
				violations = append(violations, types.Violation{
					Field:         prefix + "description",
					OriginalValue: sub.original,
					ProposedValue: sub.replacement,
					Reason:        types.ReasonNameSubstituted,
				})
			}
		}
	}

	for i := shared; i < len(proposed.Experiences); i++ {
		exp := proposed.Experiences[i]
		violations = append(violations, types.Violation{
			Field:         fmt.Sprintf("experiences[%d]", i),
			ProposedValue: exp.Company + " / " + exp.Title,
			Reason:        types.ReasonExperienceAdded,
		})
	}
	for i := shared; i < len(original.Experiences); i++ {
		exp := original.Experiences[i]
		violations = append(violations, types.Violation{
			Field:         fmt.Sprintf("experiences[%d]", i),
			OriginalValue: exp.Company + " / " + exp.Title,
			Reason:        types.ReasonExperienceRemoved,
		})
	}
	return violations
}

func (v *Verifier) skillViolations(factSkills, proposedSkills []string) []types.Violation {
	var violations []types.Violation
	for i, skill := range proposedSkills {
		if v.VerifySkillClaim(skill, factSkills) {
			continue
		}
		violations = append(violations, types.Violation{
			Field:         fmt.Sprintf("skills[%d]", i),
			ProposedValue: skill,
			Reason:        types.ReasonUnverifiedSkill,
		})
	}
	return violations
}

func experienceViolations(prefix string, original, proposed types.Experience) []types.Violation {
	var violations []types.Violation
	check := func(field, orig, prop string) {
		if orig != prop {
			violations = append(violations, protected(prefix+field, orig, prop))
		}
	}

	check("company", original.Company, proposed.Company)
	check("title", original.Title, proposed.Title)
	check("startDate", original.StartDate, proposed.StartDate)
	if !sameDate(original.EndDate, proposed.EndDate) {
		violations = append(violations, protected(prefix+"endDate",
			types.DerefString(original.EndDate), types.DerefString(proposed.EndDate)))
	}
	return violations
}

func educationListViolations(original, proposed []types.Education) []types.Violation {
	var violations []types.Violation

	shared := min(len(original), len(proposed))
	for i := range shared {
		prefix := fmt.Sprintf("education[%d].", i)
		orig, prop := original[i], proposed[i]
		if orig.Institution != prop.Institution {
			violations = append(violations, protected(prefix+"institution", orig.Institution, prop.Institution))
		}
		if orig.Degree != prop.Degree {
			violations = append(violations, protected(prefix+"degree", orig.Degree, prop.Degree))
		}
		if orig.StartDate != prop.StartDate {
			violations = append(violations, protected(prefix+"startDate", orig.StartDate, prop.StartDate))
		}
		if !sameDate(orig.EndDate, prop.EndDate) {
			violations = append(violations, protected(prefix+"endDate",
				types.DerefString(orig.EndDate), types.DerefString(prop.EndDate)))
		}
	}

	for i := shared; i < len(proposed); i++ {
		violations = append(violations, types.Violation{
			Field:         fmt.Sprintf("education[%d]", i),
			ProposedValue: proposed[i].Institution,
			Reason:        types.ReasonEducationAdded,
		})
	}
	for i := shared; i < len(original); i++ {
		violations = append(violations, types.Violation{
			Field:         fmt.Sprintf("education[%d]", i),
			OriginalValue: original[i].Institution,
			Reason:        types.ReasonEducationRemoved,
		})
	}
	return violations
}

// identityViolations checks the contact facts; location and summary may be rewritten.
func identityViolations(original, proposed types.PersonalInfo) []types.Violation {
	var violations []types.Violation
	if original.Name != proposed.Name {
		violations = append(violations, protected("personalInfo.name", original.Name, proposed.Name))
	}
	if original.Email != proposed.Email {
		violations = append(violations, protected("personalInfo.email", original.Email, proposed.Email))
	}
	if original.Phone != proposed.Phone {
		violations = append(violations, protected("personalInfo.phone", original.Phone, proposed.Phone))
	}
	return violations
}

// sameDate compares nullable dates; nil and "" are different values.
func sameDate(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func protected(field, original, proposed string) types.Violation {
	return types.Violation{
		Field:         field,
		OriginalValue: original,
		ProposedValue: proposed,
		Reason:        types.ReasonProtectedFieldChanged,
	}
}

func result(violations []types.Violation) types.VerificationResult {
	if violations == nil {
		violations = []types.Violation{}
	}
	return types.VerificationResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}
