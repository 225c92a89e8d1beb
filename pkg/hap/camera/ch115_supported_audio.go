package camera

import (
	"errors"
	"strings"

	"github.com/hapcam/hapcam/pkg/hap/tlv8"
	"github.com/rs/zerolog"
)

const TypeSupportedAudioStreamConfiguration = "115"

type SupportedAudioStreamConfig struct {
	Codecs       []AudioCodecConfig `tlv8:"1"`
	ComfortNoise byte               `tlv8:"2"`
}

const (
	AudioCodecTypePCMU   = 0
	AudioCodecTypePCMA   = 1
	AudioCodecTypeAACELD = 2
	AudioCodecTypeOpus   = 3

	AudioCodecBitrateVariable = 0
	AudioCodecBitrateConstant = 1

	AudioCodecSampleRate8Khz  = 0
	AudioCodecSampleRate16Khz = 1
	AudioCodecSampleRate24Khz = 2
)

// codec names in options and stream requests
const (
	AudioCodecOpus   = "OPUS"
	AudioCodecAACELD = "AAC-eld"
)

// audio sub-record types
const (
	audioCodec        = 1
	audioParams       = 2
	audioRTPParams    = 3
	audioComfortNoise = 4

	audioParamChannels   = 1
	audioParamBitrate    = 2
	audioParamSampleRate = 3
	audioParamPacketTime = 4
)

type AudioCodecConfig struct {
	CodecType   byte             `tlv8:"1"`
	CodecParams AudioCodecParams `tlv8:"2"`
}

type AudioCodecParams struct {
	Channels   byte `tlv8:"1"`
	Bitrate    byte `tlv8:"2"` // 0 - variable, 1 - constant
	SampleRate byte `tlv8:"3"` // 0 - 8000, 1 - 16000, 2 - 24000
}

// supportedAudioConfiguration advertises every configured codec HomeKit accepts.
// Without any, a single Opus 24 kHz entry is advertised and videoOnly is set.
func supportedAudioConfiguration(audio *AudioOptions, log zerolog.Logger) (b []byte, videoOnly bool, err error) {
	if audio.Codecs == nil {
		return nil, false, errors.New("camera: audio codecs are missing")
	}

	for _, codec := range audio.Codecs {
		var codecType byte

		switch strings.ToUpper(codec.Type) {
		case "OPUS":
			codecType = AudioCodecTypeOpus
		case "AAC-ELD":
			codecType = AudioCodecTypeAACELD
		default:
			log.Warn().Msgf("[homekit] unsupported audio codec: %s", codec.Type)
			continue
		}

		sampleRate, ok := sampleRateType(codec.SampleRate)
		if !ok {
			log.Warn().Msgf("[homekit] unsupported audio sample rate: %d", codec.SampleRate)
			continue
		}

		b = append(b, audioEntry(codecType, AudioCodecBitrateVariable, sampleRate)...)
	}

	if b == nil {
		log.Warn().Msg("[homekit] no audio codec supported by HomeKit, stream will be video only")
		b = audioEntry(AudioCodecTypeOpus, AudioCodecBitrateVariable, AudioCodecSampleRate24Khz)
		videoOnly = true
	}

	b = append(b, tlv8.MustEncode(2, audio.ComfortNoise)...)

	return b, videoOnly, nil
}

func audioEntry(codecType, bitrate, sampleRate byte) []byte {
	params := tlv8.MustEncode(
		audioParamChannels, 1,
		audioParamBitrate, bitrate,
		audioParamSampleRate, sampleRate,
	)
	return tlv8.MustEncode(1, tlv8.MustEncode(audioCodec, codecType, audioParams, params))
}

func sampleRateType(khz int) (byte, bool) {
	switch khz {
	case 8:
		return AudioCodecSampleRate8Khz, true
	case 16:
		return AudioCodecSampleRate16Khz, true
	case 24:
		return AudioCodecSampleRate24Khz, true
	}
	return 0, false
}

func sampleRateKHz(v byte) (int, bool) {
	switch v {
	case AudioCodecSampleRate8Khz:
		return 8, true
	case AudioCodecSampleRate16Khz:
		return 16, true
	case AudioCodecSampleRate24Khz:
		return 24, true
	}
	return 0, false
}
