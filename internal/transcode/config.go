package transcode

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRequestTimeout       = 15 * time.Second
	defaultAudioOutputExtension = "mp3"
)

// Config stores connectivity and job-shape settings for the transcode
// backends. The video backend speaks the MediaConvert job API, the audio
// backend the Elastic Transcoder job API.
type Config struct {
	VideoEndpoint        string
	AudioEndpoint        string
	Region               string
	AccessKey            string
	SecretKey            string
	AudioPipelineID      string
	AudioPresetID        string
	VideoInputPrefix     string
	VideoOutputPrefix    string
	AudioOutputExtension string
	RequestTimeout       time.Duration
	Video                VideoProfile
}

// VideoProfile holds the single-rendition HLS encode settings applied to
// every video job.
type VideoProfile struct {
	SegmentLengthSeconds int
	Width                int
	Height               int
	VideoBitrate         int
	GopSize              float64
	AudioBitrate         int
	AudioSampleRate      int
	NameModifier         string
}

// DefaultVideoProfile returns the stock 540p HLS rendition.
func DefaultVideoProfile() VideoProfile {
	return VideoProfile{
		SegmentLengthSeconds: 10,
		Width:                960,
		Height:               540,
		VideoBitrate:         3_500_000,
		GopSize:              90,
		AudioBitrate:         96_000,
		AudioSampleRate:      48_000,
		NameModifier:         "_low",
	}
}

// LoadConfigFromEnv initialises a Config from environment variables.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		VideoEndpoint:        strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_VIDEO_API")),
		AudioEndpoint:        strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_AUDIO_API")),
		Region:               strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_REGION")),
		AccessKey:            strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_ACCESS_KEY")),
		SecretKey:            strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_SECRET_KEY")),
		AudioPipelineID:      strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_AUDIO_PIPELINE_ID")),
		AudioPresetID:        strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_AUDIO_PRESET_ID")),
		VideoInputPrefix:     strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_VIDEO_INPUT_PREFIX")),
		VideoOutputPrefix:    strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_VIDEO_OUTPUT_PREFIX")),
		AudioOutputExtension: strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_AUDIO_OUTPUT_EXTENSION")),
		RequestTimeout:       defaultRequestTimeout,
		Video:                DefaultVideoProfile(),
	}

	if timeout := strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_REQUEST_TIMEOUT")); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse MEDIASTREAM_TRANSCODER_REQUEST_TIMEOUT: %w", err)
		}
		if parsed > 0 {
			cfg.RequestTimeout = parsed
		}
	}

	if segment := strings.TrimSpace(os.Getenv("MEDIASTREAM_TRANSCODER_SEGMENT_LENGTH")); segment != "" {
		parsed, err := strconv.Atoi(segment)
		if err != nil {
			return Config{}, fmt.Errorf("parse MEDIASTREAM_TRANSCODER_SEGMENT_LENGTH: %w", err)
		}
		if parsed > 0 {
			cfg.Video.SegmentLengthSeconds = parsed
		}
	}

	if cfg.AudioOutputExtension == "" {
		cfg.AudioOutputExtension = defaultAudioOutputExtension
	}
	cfg.AudioOutputExtension = strings.TrimPrefix(cfg.AudioOutputExtension, ".")

	return cfg, nil
}

// Validate reports the settings still missing before a dispatcher can be
// built. Prefix defaults derived from the object store bucket are applied by
// the caller before validation.
func (cfg Config) Validate() error {
	var missing []string
	if cfg.VideoEndpoint == "" {
		missing = append(missing, "video endpoint")
	}
	if cfg.AudioEndpoint == "" {
		missing = append(missing, "audio endpoint")
	}
	if cfg.AccessKey == "" {
		missing = append(missing, "access key")
	}
	if cfg.SecretKey == "" {
		missing = append(missing, "secret key")
	}
	if cfg.AudioPipelineID == "" {
		missing = append(missing, "audio pipeline id")
	}
	if cfg.AudioPresetID == "" {
		missing = append(missing, "audio preset id")
	}
	if cfg.VideoInputPrefix == "" {
		missing = append(missing, "video input prefix")
	}
	if cfg.VideoOutputPrefix == "" {
		missing = append(missing, "video output prefix")
	}
	if len(missing) > 0 {
		return fmt.Errorf("transcoder config missing %s", strings.Join(missing, ", "))
	}
	return nil
}
