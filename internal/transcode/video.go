package transcode

import "strings"

// VideoJobSpec is a MediaConvert-style HLS packaging job. The destination
// deliberately mirrors the storage key so the master playlist lands at
// {output prefix}/{storage key}.m3u8, the address the canonical URL resolver
// hands to clients.
type VideoJobSpec struct {
	Settings VideoJobSettings `json:"Settings"`
}

type VideoJobSettings struct {
	TimecodeConfig TimecodeConfig `json:"TimecodeConfig"`
	Inputs         []VideoInput   `json:"Inputs"`
	OutputGroups   []OutputGroup  `json:"OutputGroups"`
}

type TimecodeConfig struct {
	Source string `json:"Source"`
}

type VideoInput struct {
	FileInput      string                   `json:"FileInput"`
	TimecodeSource string                   `json:"TimecodeSource"`
	AudioSelectors map[string]AudioSelector `json:"AudioSelectors"`
	VideoSelector  VideoSelector            `json:"VideoSelector"`
}

type AudioSelector struct {
	DefaultSelection string `json:"DefaultSelection"`
}

type VideoSelector struct {
	Rotate string `json:"Rotate"`
}

type OutputGroup struct {
	Name                string              `json:"Name"`
	OutputGroupSettings OutputGroupSettings `json:"OutputGroupSettings"`
	Outputs             []Output            `json:"Outputs"`
}

type OutputGroupSettings struct {
	Type             string            `json:"Type"`
	HlsGroupSettings *HlsGroupSettings `json:"HlsGroupSettings,omitempty"`
}

type HlsGroupSettings struct {
	SegmentLength    int    `json:"SegmentLength"`
	MinSegmentLength int    `json:"MinSegmentLength"`
	Destination      string `json:"Destination"`
}

type Output struct {
	NameModifier      string             `json:"NameModifier"`
	ContainerSettings ContainerSettings  `json:"ContainerSettings"`
	VideoDescription  VideoDescription   `json:"VideoDescription"`
	AudioDescriptions []AudioDescription `json:"AudioDescriptions"`
}

type ContainerSettings struct {
	Container string `json:"Container"`
}

type VideoDescription struct {
	Width         int                `json:"Width"`
	Height        int                `json:"Height"`
	CodecSettings VideoCodecSettings `json:"CodecSettings"`
}

type VideoCodecSettings struct {
	Codec        string       `json:"Codec"`
	H264Settings H264Settings `json:"H264Settings"`
}

type H264Settings struct {
	Bitrate         int     `json:"Bitrate"`
	RateControlMode string  `json:"RateControlMode"`
	CodecProfile    string  `json:"CodecProfile"`
	CodecLevel      string  `json:"CodecLevel"`
	GopSize         float64 `json:"GopSize"`
	GopSizeUnits    string  `json:"GopSizeUnits"`
}

type AudioDescription struct {
	CodecSettings AudioCodecSettings `json:"CodecSettings"`
}

type AudioCodecSettings struct {
	Codec       string      `json:"Codec"`
	AacSettings AacSettings `json:"AacSettings"`
}

type AacSettings struct {
	Bitrate      int    `json:"Bitrate"`
	CodingMode   string `json:"CodingMode"`
	SampleRate   int    `json:"SampleRate"`
	CodecProfile string `json:"CodecProfile"`
}

// VideoJobBuilder derives video packaging jobs from storage keys. Builders
// are pure: the same key always produces the same job.
type VideoJobBuilder struct {
	profile      VideoProfile
	inputPrefix  string
	outputPrefix string
}

// NewVideoJobBuilder constructs a builder reading sources under inputPrefix
// and writing renditions under outputPrefix (both s3:// URIs).
func NewVideoJobBuilder(inputPrefix, outputPrefix string, profile VideoProfile) VideoJobBuilder {
	return VideoJobBuilder{
		profile:      profile,
		inputPrefix:  strings.TrimRight(strings.TrimSpace(inputPrefix), "/"),
		outputPrefix: strings.TrimRight(strings.TrimSpace(outputPrefix), "/"),
	}
}

// Build returns the HLS packaging job for the uploaded object at storageKey.
func (b VideoJobBuilder) Build(storageKey string) VideoJobSpec {
	key := strings.TrimLeft(strings.TrimSpace(storageKey), "/")
	return VideoJobSpec{
		Settings: VideoJobSettings{
			TimecodeConfig: TimecodeConfig{Source: "ZEROBASED"},
			Inputs: []VideoInput{
				{
					FileInput:      b.inputPrefix + "/" + key,
					TimecodeSource: "ZEROBASED",
					AudioSelectors: map[string]AudioSelector{
						"Audio Selector 1": {DefaultSelection: "DEFAULT"},
					},
					VideoSelector: VideoSelector{Rotate: "AUTO"},
				},
			},
			OutputGroups: []OutputGroup{
				{
					Name: "Apple HLS",
					OutputGroupSettings: OutputGroupSettings{
						Type: "HLS_GROUP_SETTINGS",
						HlsGroupSettings: &HlsGroupSettings{
							SegmentLength:    b.profile.SegmentLengthSeconds,
							MinSegmentLength: 0,
							Destination:      b.outputPrefix + "/" + key,
						},
					},
					Outputs: []Output{
						{
							NameModifier:      b.profile.NameModifier,
							ContainerSettings: ContainerSettings{Container: "M3U8"},
							VideoDescription: VideoDescription{
								Width:  b.profile.Width,
								Height: b.profile.Height,
								CodecSettings: VideoCodecSettings{
									Codec: "H_264",
									H264Settings: H264Settings{
										Bitrate:         b.profile.VideoBitrate,
										RateControlMode: "CBR",
										CodecProfile:    "MAIN",
										CodecLevel:      "LEVEL_3_1",
										GopSize:         b.profile.GopSize,
										GopSizeUnits:    "FRAMES",
									},
								},
							},
							AudioDescriptions: []AudioDescription{
								{
									CodecSettings: AudioCodecSettings{
										Codec: "AAC",
										AacSettings: AacSettings{
											Bitrate:      b.profile.AudioBitrate,
											CodingMode:   "CODING_MODE_2_0",
											SampleRate:   b.profile.AudioSampleRate,
											CodecProfile: "LC",
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func (VideoJobSpec) backendName() string { return "mediaconvert" }
func (VideoJobSpec) submitPath() string  { return "/2017-08-29/jobs" }
