package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeBody collapses whitespace so that layout-only changes to a page
// do not alter the content hash.
func NormalizeBody(body string) string {
	lines := strings.Split(body, "\n")
	var paragraphs []string
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		paragraphs = append(paragraphs, strings.Join(fields, " "))
	}
	return strings.Join(paragraphs, "\n")
}

// HashContent returns the stable SHA-256 hex digest of a normalized body.
// Two documents with the same digest are duplicates regardless of URL.
func HashContent(normalizedBody string) string {
	sum := sha256.Sum256([]byte(normalizedBody))
	return hex.EncodeToString(sum[:])
}
