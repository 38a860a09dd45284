// Package learning mines conversations for facts worth remembering.
package learning

import (
	"regexp"
	"strings"
	"unicode"
)

// triggers mark a message as carrying something the user wants kept.
var triggers = []string{
	"my name is",
	"call me",
	"i'm called",
	"i am called",
	"i work at",
	"i work for",
	"i work as",
	"remember that",
	"remember this",
	"please remember",
	"don't forget",
	"do not forget",
	"i like",
	"i love",
	"i hate",
	"i prefer",
	"i live in",
	"my favorite",
	"my favourite",
}

const maxFactLength = 120

// Structured patterns. Only the trigger phrase is case-insensitive; a name
// continues while the following words are capitalized. "call me" is common
// in ordinary requests, so there the first word must be capitalized too.
var patterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"Name", regexp.MustCompile(`(?i:my name is)\s+(\p{L}[\p{L}'-]*(?:\s+\p{Lu}[\p{L}'-]*)*)`)},
	{"Name", regexp.MustCompile(`(?i:call me|i'm called|i am called)\s+(\p{Lu}[\p{L}'-]*(?:\s+\p{Lu}[\p{L}'-]*)*)`)},
	{"Works at", regexp.MustCompile(`(?i:i work (?:at|for))\s+([^.,!?;\n]+)`)},
	{"Lives in", regexp.MustCompile(`(?i:i live in)\s+([^.,!?;\n]+)`)},
}

// Extract returns candidate memory contents found in a user message. A
// message with a trigger phrase but no structured match is returned whole.
// Messages without a trigger yield nothing.
func Extract(message string) []string {
	message = strings.TrimSpace(message)
	if message == "" || !hasTrigger(message) {
		return nil
	}

	var facts []string
	seen := map[string]bool{}
	add := func(fact string) {
		key := strings.ToLower(fact)
		if !seen[key] {
			seen[key] = true
			facts = append(facts, fact)
		}
	}

	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatch(message, -1) {
			value := cleanValue(m[1])
			if value == "" {
				continue
			}
			add(p.label + ": " + value)
		}
	}

	if len(facts) == 0 {
		add(message)
	}
	return facts
}

// hasTrigger matches whole words only, so "Hawaii like" is not "i like".
func hasTrigger(message string) bool {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	padded := " " + strings.Join(words, " ") + " "
	for _, t := range triggers {
		if strings.Contains(padded, " "+t+" ") {
			return true
		}
	}
	return false
}

// clauseBreak ends a captured value early ("Acme and I live in Porto").
var clauseBreak = regexp.MustCompile(`(?i)\s(?:and|but|so|because|where)\s`)

func cleanValue(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	if loc := clauseBreak.FindStringIndex(v); loc != nil {
		v = v[:loc[0]]
	}
	v = strings.TrimRight(v, " '\"")
	if r := []rune(v); len(r) > maxFactLength {
		v = strings.TrimSpace(string(r[:maxFactLength]))
	}
	return v
}
