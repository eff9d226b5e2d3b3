package activation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchKeywords returns the keywords that appear in text at least once,
// preserving input order. Empty or whitespace-only keywords are
// ignored. Keywords are matched as literal text: no character in a
// keyword carries pattern meaning. In whole-word mode an occurrence
// only counts when bounded by non-alphanumeric runes or string edges.
func MatchKeywords(text string, keywords []string, caseSensitive, wholeWord bool) []string {
	if text == "" || len(keywords) == 0 {
		return nil
	}

	haystack := text
	if !caseSensitive {
		haystack = strings.ToLower(text)
	}

	var matched []string
	for _, kw := range keywords {
		needle := strings.TrimSpace(kw)
		if needle == "" {
			continue
		}
		if !caseSensitive {
			needle = strings.ToLower(needle)
		}

		if containsKeyword(haystack, needle, wholeWord) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func containsKeyword(text, keyword string, wholeWord bool) bool {
	if !wholeWord {
		return strings.Contains(text, keyword)
	}

	for offset := 0; ; {
		idx := strings.Index(text[offset:], keyword)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(keyword)

		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		offset = start + 1
	}
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, idx int) bool {
	if idx >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[idx:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
