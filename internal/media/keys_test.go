package media

import (
	"regexp"
	"strings"
	"testing"

	"mediastream/internal/models"
)

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "movie.mp4", expected: "movie.mp4"},
		{name: "spaces", input: "my summer movie.mp4", expected: "my-summer-movie.mp4"},
		{name: "accents folded", input: "résumé.pdf", expected: "resume.pdf"},
		{name: "path stripped", input: "../../etc/passwd", expected: "passwd"},
		{name: "windows path stripped", input: `C:\Users\me\song.mp3`, expected: "song.mp3"},
		{name: "specials collapsed", input: "a!!??b.mp3", expected: "a-b.mp3"},
		{name: "unicode only", input: "日本語", expected: "upload"},
		{name: "empty", input: "", expected: "upload"},
		{name: "dots only", input: "...", expected: "upload"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeFilename(tc.input); got != tc.expected {
				t.Fatalf("SanitizeFilename(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

var storageKeyPattern = regexp.MustCompile(`^(video|audio|other)/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}-[A-Za-z0-9._-]+$`)

func TestNewStorageKeyShape(t *testing.T) {
	key := NewStorageKey(models.MediaTypeVideo, "movie.mp4")
	if !storageKeyPattern.MatchString(key) {
		t.Fatalf("unexpected key shape %q", key)
	}
	if !strings.HasPrefix(key, "video/") {
		t.Fatalf("expected video prefix, got %q", key)
	}
	if !strings.HasSuffix(key, "-movie.mp4") {
		t.Fatalf("expected sanitized filename suffix, got %q", key)
	}
}

func TestNewStorageKeyIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := NewStorageKey(models.MediaTypeAudio, "track.mp3")
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}
