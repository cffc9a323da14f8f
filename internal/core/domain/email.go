package domain

import "strings"

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Uniqueness checks and credential lookups both key on this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
