package transcode

import "strings"

// AudioJobSpec is an Elastic Transcoder-style job converting an uploaded
// audio object into the single preset rendition clients consume. The output
// key appends ".transcoded.{ext}" to the source key, matching the canonical
// URL resolver.
type AudioJobSpec struct {
	PipelineID string         `json:"PipelineId"`
	Input      AudioJobInput  `json:"Input"`
	Output     AudioJobOutput `json:"Output"`
}

type AudioJobInput struct {
	Key       string `json:"Key"`
	Container string `json:"Container"`
}

type AudioJobOutput struct {
	Key      string `json:"Key"`
	PresetID string `json:"PresetId"`
}

// AudioJobBuilder derives audio transcode jobs from storage keys. Builders
// are pure: the same key always produces the same job.
type AudioJobBuilder struct {
	pipelineID      string
	presetID        string
	outputExtension string
}

// NewAudioJobBuilder constructs a builder submitting to the given pipeline
// with a fixed preset. outputExtension defaults to mp3 when empty.
func NewAudioJobBuilder(pipelineID, presetID, outputExtension string) AudioJobBuilder {
	ext := strings.TrimPrefix(strings.TrimSpace(outputExtension), ".")
	if ext == "" {
		ext = defaultAudioOutputExtension
	}
	return AudioJobBuilder{
		pipelineID:      strings.TrimSpace(pipelineID),
		presetID:        strings.TrimSpace(presetID),
		outputExtension: ext,
	}
}

// Build returns the transcode job for the uploaded object at storageKey.
func (b AudioJobBuilder) Build(storageKey string) AudioJobSpec {
	key := strings.TrimLeft(strings.TrimSpace(storageKey), "/")
	return AudioJobSpec{
		PipelineID: b.pipelineID,
		Input: AudioJobInput{
			Key:       key,
			Container: "auto",
		},
		Output: AudioJobOutput{
			Key:      key + ".transcoded." + b.outputExtension,
			PresetID: b.presetID,
		},
	}
}

// OutputKey returns the object key the backend writes the rendition to.
func (b AudioJobBuilder) OutputKey(storageKey string) string {
	return strings.TrimLeft(strings.TrimSpace(storageKey), "/") + ".transcoded." + b.outputExtension
}

func (AudioJobSpec) backendName() string { return "elastictranscoder" }
func (AudioJobSpec) submitPath() string  { return "/2012-09-25/jobs" }
