package media

import (
	"strings"

	"mediastream/internal/models"
)

// PublicURLer derives the public address of a stored object. Implemented by
// the object store client.
type PublicURLer interface {
	PublicURL(key string) string
}

// URLResolver derives the canonical consumption URL for a stored upload. The
// derived forms mirror the transcode job output conventions: video jobs write
// an HLS master playlist at {key}.m3u8 under the CDN root and audio jobs
// write {key}.transcoded.{ext}, so the resolver and the job builders must
// agree on those suffixes. Resolution is pure string work; no network calls,
// and the derived rendition may not exist yet.
type URLResolver struct {
	cdnBase        string
	blobs          PublicURLer
	audioExtension string
}

// NewURLResolver constructs a resolver rooting derived renditions at cdnBase.
// Uploads that need no transcoding resolve through the object store's public
// URL instead.
func NewURLResolver(cdnBase string, blobs PublicURLer, audioExtension string) *URLResolver {
	ext := strings.TrimPrefix(strings.TrimSpace(audioExtension), ".")
	if ext == "" {
		ext = "mp3"
	}
	return &URLResolver{
		cdnBase:        strings.TrimRight(strings.TrimSpace(cdnBase), "/"),
		blobs:          blobs,
		audioExtension: ext,
	}
}

// Resolve returns the canonical URL for the object at storageKey.
func (r *URLResolver) Resolve(category models.MediaType, storageKey string) string {
	key := strings.TrimLeft(strings.TrimSpace(storageKey), "/")
	switch category {
	case models.MediaTypeVideo:
		return r.cdnBase + "/" + key + ".m3u8"
	case models.MediaTypeAudio:
		return r.cdnBase + "/" + key + ".transcoded." + r.audioExtension
	default:
		return r.blobs.PublicURL(key)
	}
}
