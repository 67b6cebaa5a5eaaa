package fetch

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxFileNameLength is the longest file name produced by SanitizeFileName.
const MaxFileNameLength = 255

const invalidFileNameChars = `<>:"/\|?*`

// SanitizeFileName builds a file name from a media title and extension.
// Characters that are invalid on common filesystems are removed and the
// result is capped at MaxFileNameLength bytes by shortening the title. If
// nothing usable remains, a random name is used instead.
func SanitizeFileName(title, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ext = stripInvalid(ext)

	base := strings.TrimSpace(stripInvalid(title))
	base = strings.TrimRight(base, ". ")

	if limit := MaxFileNameLength - len(ext); len(base) > limit {
		base = TruncateUTF8(base, limit)
		base = strings.TrimRight(base, ". ")
	}

	name := base + ext
	if base == "" || !isSafeFileName(name) {
		return uuid.NewString() + ext
	}
	return name
}

func stripInvalid(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 || r == utf8.RuneError || strings.ContainsRune(invalidFileNameChars, r) {
			return -1
		}
		return r
	}, s)
}

// TruncateUTF8 cuts s to at most n bytes without splitting a rune.
func TruncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isSafeFileName(name string) bool {
	if name == "." || name == ".." || len(name) > MaxFileNameLength {
		return false
	}
	return filepath.Base(name) == name && filepath.IsLocal(name)
}
