package privacy

import (
	"regexp"
	"strings"
)

// privateTagRegex matches <private>...</private> blocks (non-greedy, dotall, any case).
var privateTagRegex = regexp.MustCompile(`(?is)<private>.*?</private>`)

// StripPrivateTags removes all <private>...</private> blocks from content.
func StripPrivateTags(content string) string {
	return strings.TrimSpace(privateTagRegex.ReplaceAllString(content, ""))
}

// Clean strips private blocks and reports whether anything worth keeping
// remains.
func Clean(content string) (string, bool) {
	cleaned := StripPrivateTags(content)
	return cleaned, cleaned != ""
}
