// Package stringutil provides common string manipulation utilities.
package stringutil

import (
	"strings"
	"unicode"
)

// IsNumeric checks if a string contains only ASCII digits.
// Returns false for empty strings.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ContainsAllRunes checks if s contains every rune of chars, in any order
// (case-insensitive). Repeated runes must appear as often in s:
// "資工系" matches "資訊工程學系", "明王" matches "王小明".
func ContainsAllRunes(s, chars string) bool {
	if chars == "" {
		return true
	}
	if s == "" {
		return false
	}

	have := make(map[rune]int)
	for _, r := range strings.ToLower(s) {
		have[r]++
	}
	for _, r := range strings.ToLower(chars) {
		if unicode.IsSpace(r) {
			continue
		}
		have[r]--
		if have[r] < 0 {
			return false
		}
	}
	return true
}

// SplitAny splits s on any of the separator runes, trims each part and
// drops empty parts.
//
//	SplitAny("王小明, 李大華、陳一", ",，、") returns ["王小明" "李大華" "陳一"]
func SplitAny(s, separators string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
