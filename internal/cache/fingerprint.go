package cache

import (
	"sort"
	"strings"
)

const fingerprintSeparator = "|"

// Fingerprint joins request parameters into a cache key. Callers pass parameters in a
// fixed order; identical parameters always give identical keys.
func Fingerprint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = strings.ReplaceAll(part, fingerprintSeparator, `\|`)
	}
	return strings.Join(escaped, fingerprintSeparator)
}

// FieldList renders a field selection independent of the order it was given in.
func FieldList(fields []string) string {
	cleaned := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		cleaned = append(cleaned, field)
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, ",")
}
