package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

var (
	ErrNoOutputDir      = errors.New("output directory is required")
	ErrOutputDirEscapes = errors.New("output directory must not contain \"..\"")
)

// CleanLabel makes model or user text safe for a single edit-list line:
// laughter setups, reaction types and media titles. Whitespace runs,
// newlines included, collapse to one space, other control characters are
// dropped, double quotes become apostrophes and anything an EDL reader may
// choke on becomes '_'. The result is cut to maxLen runes when maxLen > 0.
func CleanLabel(s string, maxLen int) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(labelRune(r))
	}

	out := b.String()
	if maxLen > 0 {
		if runes := []rune(out); len(runes) > maxLen {
			out = strings.TrimRight(string(runes[:maxLen]), " ")
		}
	}
	return out
}

func labelRune(r rune) rune {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return r
	}
	switch r {
	case '"', '“', '”', '‘', '’', '`':
		return '\''
	case '\'', '-', '_', '.', ',', '(', ')', '!', '?', '&', ':', '/':
		return r
	default:
		return '_'
	}
}

// FileStem turns a media title into a download file name without
// extension: "YouTube Performance" becomes "YouTube_Performance". It
// returns fallback when nothing usable is left.
func FileStem(title, fallback string) string {
	var b strings.Builder
	sep := false
	for _, r := range CleanLabel(title, 80) {
		switch {
		case r == '-' || r == '.':
			sep = false
			b.WriteRune(r)
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	stem := strings.Trim(b.String(), "._-")
	if stem == "" {
		return fallback
	}
	return stem
}

// UploadExt returns the lower-cased extension of an uploaded file name,
// or "" when it is missing or not a short alphanumeric suffix.
func UploadExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// CheckOutputDir accepts an existing directory for edit-list files.
func CheckOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return ErrNoOutputDir
	}
	if slices.Contains(strings.Split(filepath.ToSlash(dir), "/"), "..") {
		return ErrOutputDirEscapes
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output directory %s is a file", dir)
	}
	return nil
}
