package matching

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SynonymTable maps a canonical skill name to its aliases, e.g.
//
//	javascript: [js, ecmascript]
//	kubernetes: [k8s]
type SynonymTable map[string][]string

// NewMatcher builds a matcher that resolves aliases before the presence test.
// A nil or empty table yields the plain matcher.
func NewMatcher(table SynonymTable) *Matcher {
	if len(table) == 0 {
		return &Matcher{}
	}

	aliases := make(map[string]string)
	for canonical, names := range table {
		c := Normalize(canonical)
		if c == "" {
			continue
		}
		aliases[c] = c
		for _, name := range names {
			if n := Normalize(name); n != "" {
				aliases[n] = c
			}
		}
	}
	return &Matcher{aliases: aliases}
}

// LoadSynonyms reads a YAML synonym table from path.
func LoadSynonyms(path string) (SynonymTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonyms file %s: %w", path, err)
	}

	var table SynonymTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse synonyms file %s: %w", path, err)
	}
	return table, nil
}

// NewMatcherFromFile loads a synonym table when path is set, otherwise returns
// the plain matcher.
func NewMatcherFromFile(path string) (*Matcher, error) {
	if path == "" {
		return &Matcher{}, nil
	}
	table, err := LoadSynonyms(path)
	if err != nil {
		return nil, err
	}
	return NewMatcher(table), nil
}
