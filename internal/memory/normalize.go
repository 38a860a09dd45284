package memory

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize lowercases content and collapses whitespace. It is used for
// comparison only; stored content keeps its original form.
func Normalize(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}

// ContentKey is the dedup identity of a fragment: the SHA-256 of its
// normalized content.
func ContentKey(content string) string {
	h := sha256.Sum256([]byte(Normalize(content)))
	return fmt.Sprintf("%x", h)
}
