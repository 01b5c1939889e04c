package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	markupPattern   = regexp.MustCompile("[*_~`>#|\\[\\]()]")
	spaceRunPattern = regexp.MustCompile(`\s+`)
)

// NormalizeText prepares mention text for content hashing: lowercase,
// markup and URLs stripped, whitespace runs collapsed. Near-identical
// reposts normalize to the same string and share one extraction.
func NormalizeText(text string) string {
	t := strings.ToLower(text)
	t = urlPattern.ReplaceAllString(t, " ")
	t = markupPattern.ReplaceAllString(t, " ")
	t = spaceRunPattern.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// ContentHash returns the cache key for normalized mention text.
func ContentHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// TruncateAtSentence cuts text to at most maxRunes, preferring the last
// sentence boundary so the external call never sees a half sentence.
func TruncateAtSentence(text string, maxRunes int) string {
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	clipped := runes[:maxRunes]
	for i := len(clipped) - 1; i > maxRunes/2; i-- {
		switch clipped[i] {
		case '.', '!', '?':
			return string(clipped[:i+1])
		}
	}
	return string(clipped)
}
