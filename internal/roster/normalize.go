package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes a student name for comparison (lowercase,
// no diacritics, spaces for dashes).
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

// MatchesQuery reports whether the student's name or USN matches a
// free-text roster search query.
func (s *Student) MatchesQuery(query string) bool {
	if query == "" {
		return true
	}
	q := NormalizeName(query)
	return strings.Contains(NormalizeName(s.Name), q) ||
		strings.Contains(strings.ToLower(s.USN), strings.ToLower(query))
}
