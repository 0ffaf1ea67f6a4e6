package utils

import (
	"strings"
	"unicode"
)

// Truncate returns a truncated version of s with at most maxLen runes.
// If the string is truncated, "..." is appended to indicate truncation.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// SplitText splits text into chunks of at most limit runes. Cuts prefer a
// paragraph break, then a line break, then sentence punctuation, then
// whitespace, searching back no further than half the limit.
func SplitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			if tail := strings.TrimSpace(string(runes)); tail != "" {
				chunks = append(chunks, tail)
			}
			break
		}

		splitAt := findSplitPoint(runes, limit)
		if chunk := strings.TrimSpace(string(runes[:splitAt])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[splitAt:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	return chunks
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '।', ';', ':', ',':
		return true
	}
	return false
}

func findSplitPoint(runes []rune, limit int) int {
	if len(runes) <= limit {
		return len(runes)
	}
	if limit <= 1 {
		return 1
	}

	floor := limit / 2
	if floor < 1 {
		floor = 1
	}

	for i := limit; i > floor; i-- {
		if i > 1 && runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if isSentenceEnd(runes[i-1]) && unicode.IsSpace(runes[i]) {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}
