package api

import "strings"

// SnakeKeys recursively converts every map key in a decoded JSON value from
// camelCase to snake_case.
//
// Keys listed in passthrough keep their subtree verbatim: the key itself is
// still converted, but nothing below it is touched. Non-container values are
// returned unchanged.
func SnakeKeys(v any, passthrough map[string]bool) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if passthrough[k] {
				out[toSnake(k)] = child
				continue
			}
			out[toSnake(k)] = SnakeKeys(child, passthrough)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = SnakeKeys(child, passthrough)
		}
		return out
	default:
		return v
	}
}

// CamelKeys recursively converts every map key in a decoded JSON value from
// snake_case to camelCase. The conversion is total; there is no pass-through
// set on the response direction.
func CamelKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[toCamel(k)] = CamelKeys(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = CamelKeys(child)
		}
		return out
	default:
		return v
	}
}

// toSnake converts a camelCase identifier to snake_case.
// Runs of upper-case letters collapse into a single word ("userID" -> "user_id").
func toSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && isLowerAlnum(runes[i-1])
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || (i > 0 && runes[i-1] != '_' && nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// toCamel converts a snake_case identifier to camelCase. Leading underscores
// are preserved so private-by-convention keys survive a round trip.
func toCamel(s string) string {
	i := 0
	for i < len(s) && s[i] == '_' {
		i++
	}
	prefix, rest := s[:i], s[i:]

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(prefix)
	upperNext := false
	for _, r := range rest {
		if r == '_' {
			upperNext = true
			continue
		}
		if upperNext && r >= 'a' && r <= 'z' {
			b.WriteRune(r - 'a' + 'A')
		} else {
			b.WriteRune(r)
		}
		upperNext = false
	}
	return b.String()
}

func isLowerAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
