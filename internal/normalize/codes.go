package normalize

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// Code trims whitespace, uppercases, and strips non-alphanumeric characters,
// so "i25.10" and "I2510" compare equal.
func Code(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return nonAlphanumeric.ReplaceAllString(s, "")
}

// Codes normalizes each code and drops empty results, keeping order.
func Codes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = Code(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// SplitCodes splits a delimited code list such as "E1100;I10" or "E1100, I10".
func SplitCodes(s string) []string {
	return Codes(strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ',' || r == '|' || r == ' ' || r == '\t'
	}))
}

// Dedupe removes repeated codes, keeping the first occurrence.
func Dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
