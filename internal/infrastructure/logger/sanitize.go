package logger

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SanitizeForLog escapes control characters so untrusted text (URLs,
// platform hints, extractor stderr) cannot forge log lines or drive the
// terminal. \n, \r and \t get their usual escapes, other C0 controls and
// DEL become \xNN. Printable Unicode is kept.
func SanitizeForLog(s string) string {
	if !strings.ContainsFunc(s, isControl) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case isControl(r):
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// Excerpt sanitizes s and keeps at most the last max bytes, which is where
// external tools print their final error. A leading "..." marks truncation.
func Excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return SanitizeForLog(s)
	}
	cut := len(s) - max
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "..." + SanitizeForLog(s[cut:])
}
