package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxFilenameLength = 255

// unsafeFilenameChars break the Content-Disposition quoting or act as path
// separators.
const unsafeFilenameChars = "\"\\/:"

// SanitizeFilename makes a caller-supplied filename safe to echo back.
// Control characters, quotes and path separators become '_', Unicode is
// kept, and the result is cut to 255 bytes with its extension intact. A name
// with nothing left becomes "file".
func SanitizeFilename(name string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 32 || r == 127 || strings.ContainsRune(unsafeFilenameChars, r) {
			return '_'
		}
		return r
	}, name)
	clean = strings.TrimSpace(clean)

	if strings.Trim(clean, "_") == "" {
		return "file"
	}
	if len(clean) <= maxFilenameLength {
		return clean
	}

	ext := filepath.Ext(clean)
	if ext == "" || len(ext) >= maxFilenameLength {
		return cutAtRune(clean, maxFilenameLength)
	}
	base := strings.TrimSuffix(clean, ext)
	return cutAtRune(base, maxFilenameLength-len(ext)) + ext
}

// cutAtRune returns at most n bytes of s without splitting a rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// AudioFilename returns the filename suggested to the caller for an
// extracted track. A non-empty suggestion is sanitized and forced to end in
// ext; otherwise the name is derived from the job token.
func AudioFilename(suggested, token, ext string) string {
	suggested = strings.TrimSpace(suggested)
	if suggested == "" {
		return fmt.Sprintf("audio_%s%s", token, ext)
	}

	base := strings.TrimSuffix(suggested, filepath.Ext(suggested))
	if base == "" {
		base = "audio"
	}
	return SanitizeFilename(base + ext)
}
