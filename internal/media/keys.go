package media

import (
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mediastream/internal/models"
)

// asciiFold decomposes accented characters and strips the combining marks so
// "résumé.pdf" sanitizes to "resume.pdf" instead of losing letters.
var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeFilename reduces a client-supplied filename to a key-safe form:
// path components are stripped, accents folded to ASCII, and anything outside
// [A-Za-z0-9._-] collapsed to a single dash. Empty results fall back to
// "upload".
func SanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if folded, _, err := transform.String(asciiFold, base); err == nil {
		base = folded
	}
	var builder strings.Builder
	pendingDash := false
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			builder.WriteRune(r)
			pendingDash = false
		default:
			if !pendingDash {
				builder.WriteByte('-')
				pendingDash = true
			}
		}
	}
	cleaned := strings.Trim(builder.String(), "-.")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

// NewStorageKey builds the object key for an upload:
// {category}/{uuid}-{sanitized filename}. The category prefix partitions the
// bucket and the random component keeps concurrent uploads of the same file
// from colliding.
func NewStorageKey(category models.MediaType, filename string) string {
	return string(category) + "/" + uuid.NewString() + "-" + SanitizeFilename(filename)
}
