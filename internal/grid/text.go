package grid

import (
	"regexp"
	"strings"
)

var (
	enumPrefix = regexp.MustCompile(`^\s*\d+\.\s*`)
	wsRun      = regexp.MustCompile(`\s+`)
)

// CleanValue trims whitespace and trailing list delimiters.
func CleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ";,")
	return strings.TrimSpace(s)
}

// SplitListCell splits a multi-value cell into cleaned parts. Delimiters
// are tried in order newline, semicolon, comma; the first that yields
// more than one non-empty part wins. A cell with no effective delimiter
// is a single value.
func SplitListCell(s string) []string {
	for _, delim := range []string{"\n", ";", ","} {
		if !strings.Contains(s, delim) {
			continue
		}
		raw := strings.Split(s, delim)
		parts := make([]string, 0, len(raw))
		for _, p := range raw {
			if c := CleanValue(p); c != "" {
				parts = append(parts, c)
			}
		}
		if len(parts) > 1 {
			return parts
		}
	}
	if c := CleanValue(s); c != "" {
		return []string{c}
	}
	return nil
}

// StripEnumPrefix removes a leading "<n>. " numbering marker.
func StripEnumPrefix(s string) string {
	return enumPrefix.ReplaceAllString(s, "")
}

// ParseReferenceList splits an article reference cell into entries:
// newline first, then semicolons, each entry cleaned and stripped of
// its numbering prefix.
func ParseReferenceList(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		for _, piece := range strings.Split(line, ";") {
			entry := CleanValue(StripEnumPrefix(piece))
			if entry != "" {
				out = append(out, entry)
			}
		}
	}
	return out
}

// NormalizeText lowercases and collapses whitespace runs to single
// spaces so header and entry comparisons ignore formatting noise.
func NormalizeText(s string) string {
	return strings.TrimSpace(wsRun.ReplaceAllString(strings.ToLower(s), " "))
}
