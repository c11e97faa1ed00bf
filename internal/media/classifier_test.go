package media

import (
	"errors"
	"testing"

	"mediastream/internal/models"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		mime     string
		expected models.MediaType
	}{
		{name: "video mp4", mime: "video/mp4", expected: models.MediaTypeVideo},
		{name: "video quicktime", mime: "video/quicktime", expected: models.MediaTypeVideo},
		{name: "audio mpeg", mime: "audio/mpeg", expected: models.MediaTypeAudio},
		{name: "audio wav", mime: "audio/wav", expected: models.MediaTypeAudio},
		{name: "image", mime: "image/png", expected: models.MediaTypeOther},
		{name: "pdf", mime: "application/pdf", expected: models.MediaTypeOther},
		{name: "empty primary", mime: "/mp4", expected: models.MediaTypeOther},
		{name: "trailing slash video", mime: "video/", expected: models.MediaTypeVideo},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(tc.mime)
			if err != nil {
				t.Fatalf("Classify(%q) returned error: %v", tc.mime, err)
			}
			if got != tc.expected {
				t.Fatalf("Classify(%q) = %q, expected %q", tc.mime, got, tc.expected)
			}
		})
	}
}

func TestClassifyRejectsMimeWithoutSlash(t *testing.T) {
	for _, mime := range []string{"", "video", "mp4", "not a mime"} {
		if _, err := Classify(mime); !errors.Is(err, ErrInvalidMimeType) {
			t.Fatalf("Classify(%q) = %v, expected ErrInvalidMimeType", mime, err)
		}
	}
}

func TestClassifyIsCaseSensitive(t *testing.T) {
	// Uppercase primary types are not recognized categories; they fall
	// through to other rather than erroring.
	got, err := Classify("VIDEO/mp4")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if got != models.MediaTypeOther {
		t.Fatalf("expected other, got %q", got)
	}
}
