package models

import (
	"fmt"
	"time"
)

// MediaType partitions uploads into the coarse categories the platform
// understands. The category decides where an object is stored, which
// transcode backend (if any) receives a job, and how the canonical URL is
// derived.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeOther MediaType = "other"
)

// Valid reports whether the value is one of the known categories.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeVideo, MediaTypeAudio, MediaTypeOther:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (t MediaType) String() string {
	return string(t)
}

// ParseMediaType converts a stored string back into a MediaType, rejecting
// values outside the known set.
func ParseMediaType(value string) (MediaType, error) {
	t := MediaType(value)
	if !t.Valid() {
		return "", fmt.Errorf("unknown media type %q", value)
	}
	return t, nil
}

// MediaAsset is the persisted record of a completed upload. StorageKey is the
// object-store key of the original blob; CanonicalURL points at the address
// clients should consume, which for video and audio refers to a derived
// rendition that may not exist yet.
type MediaAsset struct {
	ID               string    `json:"id"`
	MediaType        MediaType `json:"mediaType"`
	StorageKey       string    `json:"key"`
	OriginalFilename string    `json:"filename"`
	CanonicalURL     string    `json:"url"`
	SizeBytes        int64     `json:"sizeBytes"`
	CreatedAt        time.Time `json:"createdAt"`
}
