package validators

import "strings"

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// SanitizeStrings trims every entry and drops the empty ones.
func SanitizeStrings(input []string, maxLen int) []string {
	out := make([]string, 0, len(input))
	for _, v := range input {
		if s := SanitizeString(v, maxLen); s != "" {
			out = append(out, s)
		}
	}
	return out
}
