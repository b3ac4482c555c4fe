package lxcconf

import (
	"regexp"
	"strings"
)

// MarkerNamespace prefixes every hidden marker this deployer writes.
const MarkerNamespace = "oci-lxc-deployer"

// Hidden machine markers come first in each rule; human-visible
// fallback lines second. The first non-empty match wins, so adding a
// field is a table entry, not new control flow.
var (
	managedPattern = regexp.MustCompile(`(?i)` + MarkerNamespace + `:managed`)

	ociImagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + MarkerNamespace + `:oci-image\s+(.+?)\s*-->`),
		regexp.MustCompile(`(?im)^\s*OCI image:\s*(.+?)\s*$`),
	}
	appIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + MarkerNamespace + `:application-id\s+(.+?)\s*-->`),
		regexp.MustCompile(`(?im)^\s*#?\s*Application\s+ID\s*:\s*(.+?)\s*$`),
	}
	appNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + MarkerNamespace + `:application-name\s+(.+?)\s*-->`),
		regexp.MustCompile(`(?im)^\s*#?\s*##\s+(.+?)\s*$`),
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + MarkerNamespace + `:version\s+(.+?)\s*-->`),
		regexp.MustCompile(`(?im)^\s*#?\s*Version\s*:\s*(.+?)\s*$`),
	}
	usernamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + MarkerNamespace + `:username\s+(.+?)\s*-->`),
	}
	uidPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + MarkerNamespace + `:uid\s+(.+?)\s*-->`),
	}
	gidPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + MarkerNamespace + `:gid\s+(.+?)\s*-->`),
	}

	addonPattern = regexp.MustCompile(`(?i)` + MarkerNamespace + `:addon\s+(.+?)\s*-->`)
)

// IsManaged reports whether the text carries the managed marker in
// either view. Cheap enough to run before a full parse over many
// candidate configs.
func IsManaged(raw string) bool {
	normalized, decoded := Views(raw)
	return managedPattern.MatchString(normalized) || managedPattern.MatchString(decoded)
}

// extractFirst tries each pattern in order and returns the first
// non-empty trimmed capture. No match means an empty string, which
// callers treat as "field unset".
func extractFirst(text string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); len(m) == 2 {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

// extractField runs the rule against the decoded view first and falls
// back to the normalized view: markers may be written plain while the
// surrounding description was or was not percent-encoded by its writer.
func extractField(normalized, decoded string, patterns []*regexp.Regexp) string {
	if v := extractFirst(decoded, patterns); v != "" {
		return v
	}
	return extractFirst(normalized, patterns)
}

// extractAddons collects addon markers from both views, deduplicated
// preserving first-seen order.
func extractAddons(normalized, decoded string) []string {
	seen := make(map[string]bool)
	var addons []string
	for _, text := range []string{decoded, normalized} {
		for _, m := range addonPattern.FindAllStringSubmatch(text, -1) {
			v := strings.TrimSpace(m[1])
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			addons = append(addons, v)
		}
	}
	return addons
}
