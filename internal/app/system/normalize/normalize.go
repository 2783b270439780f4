// Package normalize trims and case-folds user input before it is validated
// or stored.
package normalize

import "strings"

// Email trims whitespace and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Emails normalizes every address in list and drops blanks. Order and
// duplicates are preserved so callers can report them.
func Emails(list []string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		if n := Email(e); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Name trims whitespace and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Status trims and lowercases a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query string value, preserving case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
