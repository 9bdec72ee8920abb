package upload

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	// maxBaseLength bounds the client-derived part of a storage name.
	maxBaseLength = 50

	// tokenBytes is the entropy of the random suffix.
	tokenBytes = 8

	timestampLayout = "20060102_150405"

	defaultBase = "file"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces an arbitrary client-supplied filename to a
// safe character subset with all directory components stripped. The
// result contains only [A-Za-z0-9._-] and is never empty, ".", or "..";
// unusable inputs collapse to "file".
func SanitizeFilename(name string) string {
	// Windows separators and null bytes first, then the base name.
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.ReplaceAll(name, "\x00", "")
	name = filepath.Base(name)

	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, ".")

	if name == "" {
		return defaultBase
	}
	return name
}

// NewStorageName derives a unique storage name from the original
// filename: the sanitized base truncated to a bounded length, a
// timestamp, and a random hex token, with the lower-cased extension
// reattached. Two calls on the same input produce different names.
func NewStorageName(original string) string {
	safe := SanitizeFilename(original)

	ext := strings.ToLower(filepath.Ext(safe))
	base := strings.TrimSuffix(safe, filepath.Ext(safe))
	base = strings.Trim(base, ".")

	if len(base) > maxBaseLength {
		base = base[:maxBaseLength]
	}
	if base == "" {
		base = defaultBase
	}

	token := make([]byte, tokenBytes)
	// crypto/rand.Read never fails on supported platforms.
	_, _ = rand.Read(token)

	return fmt.Sprintf("%s_%s_%s%s",
		base,
		time.Now().UTC().Format(timestampLayout),
		hex.EncodeToString(token),
		ext,
	)
}
