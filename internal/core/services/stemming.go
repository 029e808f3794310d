package services

import (
	"strings"

	"github.com/kljensen/snowball/english"
)

// stemQuery reduces each token of a lowercased query to its English root.
// It returns the stemmed query and a "word→root" detail, or "" when no token
// changed.
func stemQuery(query string) (string, string) {
	tokens := strings.Fields(strings.ToLower(query))
	stems := make([]string, len(tokens))
	var changes []string

	for i, tok := range tokens {
		word := strings.Trim(tok, punctuation)
		if len(word) < 3 {
			stems[i] = tok
			continue
		}
		root := english.Stem(word, false)
		if root == "" || root == word {
			stems[i] = tok
			continue
		}
		stems[i] = strings.Replace(tok, word, root, 1)
		changes = append(changes, word+"→"+root)
	}

	if len(changes) == 0 {
		return "", ""
	}
	return strings.Join(stems, " "), strings.Join(changes, ", ")
}

const punctuation = ".,;:!?\"'()[]{}"
