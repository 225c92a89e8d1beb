package camera

import "github.com/pion/transport/v3"

// Options describe one camera, shared by all its stream controllers.
type Options struct {
	Proxy             bool   `yaml:"proxy"`
	DisableAudioProxy bool   `yaml:"disable_audio_proxy"`
	SRTP              bool   `yaml:"srtp"`
	Address           string `yaml:"address"`    // local address in setup responses, autodetect if empty
	RelayPort         int    `yaml:"relay_port"` // first port of the relay search

	Video *VideoOptions `yaml:"video"`
	Audio *AudioOptions `yaml:"audio"`

	// Net is used for relay sockets and address discovery, stdnet when nil
	Net transport.Net `yaml:"-"`
}

type VideoOptions struct {
	Resolutions [][]int            `yaml:"resolutions"` // [width, height, fps]
	Codec       *VideoCodecOptions `yaml:"codec"`
}

type VideoCodecOptions struct {
	Profiles []int `yaml:"profiles"`
	Levels   []int `yaml:"levels"`
}

type AudioOptions struct {
	ComfortNoise bool                `yaml:"comfort_noise"`
	Codecs       []AudioCodecOptions `yaml:"codecs"`
}

type AudioCodecOptions struct {
	Type       string `yaml:"type"`       // OPUS or AAC-eld
	SampleRate int    `yaml:"samplerate"` // kHz: 8, 16 or 24
}

// DefaultOptions is a 1080p H264 camera with Opus and AAC-ELD audio.
func DefaultOptions() *Options {
	return &Options{
		SRTP: true,
		Video: &VideoOptions{
			Resolutions: [][]int{
				{1920, 1080, 30},
				{320, 240, 15}, // Apple Watch
				{1280, 960, 30},
				{1280, 720, 30},
				{1024, 768, 30},
				{640, 480, 30},
				{640, 360, 30},
				{480, 360, 30},
				{480, 270, 30},
				{320, 240, 30},
				{320, 180, 30},
			},
			Codec: &VideoCodecOptions{
				Profiles: []int{VideoCodecProfileConstrainedBaseline, VideoCodecProfileMain, VideoCodecProfileHigh},
				Levels:   []int{VideoCodecLevel31, VideoCodecLevel32, VideoCodecLevel40},
			},
		},
		Audio: &AudioOptions{
			Codecs: []AudioCodecOptions{
				{Type: AudioCodecOpus, SampleRate: 24},
				{Type: AudioCodecAACELD, SampleRate: 16},
			},
		},
	}
}
