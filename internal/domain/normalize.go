package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for first/last name normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeDocumentNumber removes all whitespace and upper-cases the value so
// that "abc 123" and "ABC123" collide on the per-collection uniqueness check.
func NormalizeDocumentNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
