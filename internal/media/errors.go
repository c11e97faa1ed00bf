package media

import "errors"

var (
	// ErrInvalidMimeType marks uploads whose MIME type cannot be parsed.
	// Handlers map it to a 400 response.
	ErrInvalidMimeType = errors.New("invalid mime type")

	// ErrStorageUpload marks failures writing the original blob to the
	// object store. The ingest aborts before anything is persisted;
	// handlers map it to a 502 response.
	ErrStorageUpload = errors.New("object store upload failed")

	// ErrRecordPersist marks failures writing the media record after the
	// blob was stored. The blob is orphaned; handlers map it to a 500
	// response.
	ErrRecordPersist = errors.New("media record persist failed")
)
