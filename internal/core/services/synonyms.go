package services

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSynonyms is the built-in synonym table used when no file is configured
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"speed":    {"performance", "latency"},
		"slow":     {"latency", "performance"},
		"fast":     {"quick", "performant"},
		"bug":      {"defect", "issue"},
		"error":    {"failure", "exception"},
		"crash":    {"failure", "panic"},
		"fix":      {"resolve", "patch"},
		"deploy":   {"release", "rollout"},
		"config":   {"configuration", "settings"},
		"db":       {"database"},
		"auth":     {"authentication", "login"},
		"test":     {"verify", "check"},
		"memory":   {"ram"},
		"docs":     {"documentation"},
		"timeout":  {"deadline"},
		"cache":    {"memoize"},
		"retry":    {"backoff"},
		"meeting":  {"sync", "standup"},
		"customer": {"client", "user"},
	}
}

// LoadSynonyms reads a YAML mapping of term to synonym list
func LoadSynonyms(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms file: %w", err)
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse synonyms file: %w", err)
	}
	return raw, nil
}

// synonymRule matches one term as a whole word, case-insensitively
type synonymRule struct {
	term     string
	pattern  *regexp.Regexp
	synonyms []string
}

// synonymSet is a compiled synonym table
type synonymSet struct {
	rules []synonymRule
}

func newSynonymSet(table map[string][]string) *synonymSet {
	terms := make([]string, 0, len(table))
	for term := range table {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	set := &synonymSet{}
	for _, term := range terms {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" || len(table[term]) == 0 {
			continue
		}
		var syns []string
		for _, s := range table[term] {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" && s != key {
				syns = append(syns, s)
			}
		}
		set.rules = append(set.rules, synonymRule{
			term:     key,
			pattern:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`),
			synonyms: syns,
		})
	}
	return set
}

// synonymCandidate is one query rewrite with a single term substituted
type synonymCandidate struct {
	query  string
	detail string
}

// candidates substitutes the first occurrence of each matching term with
// each of its synonyms, one substitution per candidate. Terms are visited in
// order of appearance in the query.
func (s *synonymSet) candidates(query string) []synonymCandidate {
	type hit struct {
		rule synonymRule
		loc  []int
	}
	var hits []hit
	for _, r := range s.rules {
		if loc := r.pattern.FindStringIndex(query); loc != nil {
			hits = append(hits, hit{rule: r, loc: loc})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].loc[0] < hits[j].loc[0]
	})

	var out []synonymCandidate
	for _, h := range hits {
		for _, syn := range h.rule.synonyms {
			out = append(out, synonymCandidate{
				query:  query[:h.loc[0]] + syn + query[h.loc[1]:],
				detail: h.rule.term + "→" + syn,
			})
		}
	}
	return out
}
