// Package lxcconf parses Proxmox LXC config files: the description
// field with its embedded deployer markers, idmap entries, mount
// points, and resource settings.
package lxcconf

import "strings"

// Normalize expands the literal "\n" sequences Proxmox uses to encode
// embedded newlines in single-line field values.
func Normalize(text string) string {
	return strings.ReplaceAll(text, `\n`, "\n")
}

// Decode percent-decodes text the way a lenient URL decoder would:
// malformed escapes pass through untouched instead of failing, because
// description fields are not guaranteed to be encoded at all.
func Decode(text string) string {
	if !strings.ContainsRune(text, '%') {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '%' && i+2 < len(text) {
			hi, ok1 := unhex(text[i+1])
			lo, ok2 := unhex(text[i+2])
			if ok1 && ok2 {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Views returns the two text views extraction works on: normalized
// (newlines expanded, still encoded) and decoded. Normalization must
// run first; decoding first would corrupt encoded backslash sequences.
func Views(raw string) (normalized, decoded string) {
	normalized = Normalize(raw)
	decoded = Decode(normalized)
	return normalized, decoded
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
