package facematch

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeIdentity turns a display name into a filename stem: only letters, digits,
// spaces, underscores and hyphens survive, trailing spaces are dropped, the result
// is lowercased and spaces become underscores (e.g., "Jane Doe!" -> "jane_doe",
// "! Jane" -> "_jane").
// Returns an empty string when nothing usable is left.
func SanitizeIdentity(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}

	stem := strings.ToLower(strings.TrimRight(b.String(), " "))
	return strings.ReplaceAll(stem, " ", "_")
}

// IdentityFromFilename derives the identity label of a reference photo:
// the base name without extension, lowercased.
func IdentityFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// HasReferenceExtension reports whether filename ends with one of exts, ignoring case.
func HasReferenceExtension(filename string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
