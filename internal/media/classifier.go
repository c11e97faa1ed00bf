// Package media implements the upload pipeline: MIME classification, storage
// key generation, canonical URL resolution, and the ingest orchestrator that
// ties the object store, transcode dispatcher, and record store together.
package media

import (
	"fmt"
	"strings"

	"mediastream/internal/models"
)

// Classify maps a MIME type to its media category using the primary type
// token: "video/*" and "audio/*" map to their categories, everything else is
// other. Strings without a "/" separator are rejected with
// ErrInvalidMimeType.
func Classify(mimeType string) (models.MediaType, error) {
	primary, _, found := strings.Cut(mimeType, "/")
	if !found {
		return "", fmt.Errorf("%w: %q", ErrInvalidMimeType, mimeType)
	}
	switch primary {
	case "video":
		return models.MediaTypeVideo, nil
	case "audio":
		return models.MediaTypeAudio, nil
	default:
		return models.MediaTypeOther, nil
	}
}
