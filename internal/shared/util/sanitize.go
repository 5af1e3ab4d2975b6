package util

import (
	"errors"
	"strings"
	"unicode"
)

// MaxFileNameRunes caps stored file names; longer names keep their extension.
const MaxFileNameRunes = 160

// ErrInvalidFileName is returned for empty names and traversal attempts.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName turns a client-supplied file name into a single safe path segment.
// Separators become underscores and control characters are dropped.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	if s == "" {
		return "", ErrInvalidFileName
	}
	return truncateKeepExt(s, MaxFileNameRunes), nil
}

func truncateKeepExt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	ext := []rune("")
	if i := strings.LastIndexByte(s, '.'); i > 0 && len(s)-i <= 10 {
		ext = []rune(s[i:])
	}
	return string(runes[:limit-len(ext)]) + string(ext)
}
