package util

import (
	"regexp"
)

// Checks applied to path and query inputs before they reach a query.

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsValidUUID reports whether s is a canonical lowercase UUID. Version
// bits are not inspected; ids are opaque beyond their shape.
func IsValidUUID(s string) bool {
	return uuidRegex.MatchString(s)
}

// IsValidEnum reports whether value names one of validValues. The empty
// string passes, so optional filters skip the check when absent.
func IsValidEnum(value string, validValues []string) bool {
	if value == "" {
		return true
	}
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}
