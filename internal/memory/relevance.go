package memory

import (
	"strings"
)

// personalBonus is added when the query refers to the user themself.
const personalBonus = 0.3

// personalPhrases are matched on word boundaries against the lowercased query.
var personalPhrases = []string{
	"about me",
	"my name",
	"who am i",
	"i am",
	"i'm",
	"i work",
	"my job",
	"where do i",
	"what do i",
	"do you know me",
}

// Score rates how well content answers query, in [0, 1].
//
// An empty query matches everything. A query that appears verbatim
// (case-insensitive) in the content scores 1. Otherwise the score is the
// fraction of distinct query words present in the content, plus a fixed
// bonus for personal-reference queries, capped at 1.
func Score(content, query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 1.0
	}
	c := strings.ToLower(content)
	if strings.Contains(c, q) {
		return 1.0
	}

	queryWords := wordSet(q)
	if len(queryWords) == 0 {
		return 0
	}
	contentWords := wordSet(c)

	overlap := 0
	for w := range queryWords {
		if contentWords[w] {
			overlap++
		}
	}
	score := float64(overlap) / float64(len(queryWords))

	if hasPersonalReference(q) {
		score += personalBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func hasPersonalReference(lowerQuery string) bool {
	padded := " " + strings.Join(strings.Fields(lowerQuery), " ") + " "
	for _, p := range personalPhrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
