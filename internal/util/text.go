package util

import (
	"strings"
	"unicode"
)

// ExtractHashtags returns the unique #tags in text, lowercased and without
// the # prefix
func ExtractHashtags(content string) []string {
	var tags []string
	seen := make(map[string]bool)

	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, "#") || len(word) < 2 {
			continue
		}
		tag := strings.ToLower(strings.TrimRightFunc(word[1:], func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		}))
		if tag != "" && len(tag) <= 50 && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
