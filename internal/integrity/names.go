package integrity

import (
	"strings"
	"unicode"

	"vocatio/internal/types"
)

type substitution struct {
	original    string
	replacement string
}

// knownNames collects the proper names a record states as facts.
func knownNames(record *types.CandidateRecord) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	add(record.PersonalInfo.Name)
	for _, exp := range record.Experiences {
		add(exp.Company)
	}
	for _, edu := range record.Education {
		add(edu.Institution)
	}
	return names
}

// recordVocabulary returns the lower-cased words a record already states,
// skills included.
func recordVocabulary(record *types.CandidateRecord) map[string]bool {
	vocabulary := make(map[string]bool)
	add := func(texts ...string) {
		for _, text := range texts {
			for _, word := range words(text) {
				vocabulary[strings.ToLower(word)] = true
			}
		}
	}

	info := record.PersonalInfo
	add(info.Name, info.Location, info.Summary)
	for _, exp := range record.Experiences {
		add(exp.Company, exp.Title, exp.Description)
	}
	for _, edu := range record.Education {
		add(edu.Institution, edu.Degree)
	}
	for _, section := range record.Sections {
		add(section.Title, section.Content)
	}
	add(record.Skills...)
	return vocabulary
}

// familiar reports whether every word of phrase already occurs in the record.
func familiar(phrase string, vocabulary map[string]bool) bool {
	for _, word := range words(phrase) {
		if !vocabulary[strings.ToLower(word)] {
			return false
		}
	}
	return true
}

// substitutedName reports a known name that the original description mentions
// and the proposed one drops in favour of a capitalized phrase the record
// never states. Dropping a name without replacing it is allowed, and so is
// naming anything the record already contains, such as a verified skill.
func substitutedName(original, proposed string, names []string, vocabulary map[string]bool) (substitution, bool) {
	for _, name := range names {
		if !strings.Contains(original, name) || strings.Contains(proposed, name) {
			continue
		}
		for _, phrase := range capitalizedPhrases(proposed) {
			if !strings.Contains(original, phrase) && !familiar(phrase, vocabulary) {
				return substitution{original: name, replacement: phrase}, true
			}
		}
	}
	return substitution{}, false
}

func words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// capitalizedPhrases returns runs of consecutive capitalized words, skipping
// the capital that merely starts a sentence.
func capitalizedPhrases(text string) []string {
	var phrases []string
	var current []string
	sentenceStart := true

	flush := func() {
		if len(current) > 0 {
			phrases = append(phrases, strings.Join(current, " "))
			current = nil
		}
	}

	for _, raw := range strings.Fields(text) {
		word := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		capitalized := word != "" && unicode.IsUpper([]rune(word)[0])

		switch {
		case capitalized && sentenceStart && len(current) == 0:
			// first word of a sentence
		case capitalized:
			current = append(current, word)
		default:
			flush()
		}

		endsSentence := strings.ContainsAny(raw[len(raw)-1:], ".!?:;")
		if endsSentence || (word != raw && strings.ContainsAny(raw, ",()")) {
			flush()
		}
		sentenceStart = endsSentence
	}
	flush()
	return phrases
}
