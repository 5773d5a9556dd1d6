package models

import "strings"

// SanitizeName maps a qualified project name to a filesystem segment. The
// separator becomes '+', which hosting account and repository names never
// contain, so distinct qualified names yield distinct segments even when the
// names themselves carry hyphens. "facebook/react" becomes "facebook+react".
// Characters outside [a-zA-Z0-9._-] are dropped so a segment cannot smuggle
// path separators or shell metacharacters.
func SanitizeName(fullName string) string {
	var b strings.Builder
	b.Grow(len(fullName))
	for _, r := range fullName {
		switch {
		case r == '/':
			b.WriteByte('+')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QualifiedName inverts SanitizeName: every '+' in a sanitized segment came
// from a separator, so the round trip is exact for any valid qualified name.
func QualifiedName(segment string) string {
	return strings.ReplaceAll(segment, "+", "/")
}
