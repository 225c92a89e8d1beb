package camera

import (
	"errors"
	"fmt"

	"github.com/hapcam/hapcam/pkg/hap/tlv8"
)

const TypeSupportedVideoStreamConfiguration = "114"

type SupportedVideoStreamConfig struct {
	Codecs []VideoCodec `tlv8:"1"`
}

type VideoCodec struct {
	CodecType   byte         `tlv8:"1"`
	CodecParams VideoParams  `tlv8:"2"`
	VideoAttrs  []VideoAttrs `tlv8:"3"`
}

//goland:noinspection ALL
const (
	VideoCodecTypeH264 = 0

	VideoCodecProfileConstrainedBaseline = 0
	VideoCodecProfileMain                = 1
	VideoCodecProfileHigh                = 2

	VideoCodecLevel31 = 0
	VideoCodecLevel32 = 1
	VideoCodecLevel40 = 2

	VideoCodecPacketizationModeNonInterleaved = 0
)

// video sub-record types
const (
	videoCodec      = 1
	videoParams     = 2
	videoAttributes = 3
	videoRTPParams  = 4

	videoParamProfileID         = 1
	videoParamLevel             = 2
	videoParamPacketizationMode = 3

	videoAttrWidth     = 1
	videoAttrHeight    = 2
	videoAttrFramerate = 3
)

type VideoParams struct {
	ProfileID         []byte `tlv8:"1"` // 0 - baseline, 1 - main, 2 - high
	Level             []byte `tlv8:"2"` // 0 - 3.1, 1 - 3.2, 2 - 4.0
	PacketizationMode byte   `tlv8:"3"` // only 0 - non interleaved
}

type VideoAttrs struct {
	Width     uint16 `tlv8:"1"`
	Height    uint16 `tlv8:"2"`
	Framerate uint8  `tlv8:"3"`
}

// supportedVideoConfiguration advertises H264 non interleaved with all
// configured profiles and levels and one attribute record per resolution.
func supportedVideoConfiguration(video *VideoOptions) ([]byte, error) {
	if video.Codec == nil {
		return nil, errors.New("camera: video codec is missing")
	}
	if video.Resolutions == nil {
		return nil, errors.New("camera: video resolutions are missing")
	}

	params := tlv8.MustEncode(videoParamPacketizationMode, VideoCodecPacketizationModeNonInterleaved)
	for _, profile := range video.Codec.Profiles {
		params = append(params, tlv8.MustEncode(videoParamProfileID, profile)...)
	}
	for _, level := range video.Codec.Levels {
		params = append(params, tlv8.MustEncode(videoParamLevel, level)...)
	}

	config := tlv8.MustEncode(videoCodec, VideoCodecTypeH264, videoParams, params)

	for _, res := range video.Resolutions {
		if len(res) != 3 {
			return nil, fmt.Errorf("camera: unexpected video resolution: %v", res)
		}

		w, h, fps := res[0], res[1], res[2]
		if w < 0 || w > 0xFFFF || h < 0 || h > 0xFFFF || fps < 0 || fps > 0xFF {
			return nil, fmt.Errorf("camera: video resolution out of range: %v", res)
		}

		attrs := tlv8.MustEncode(
			videoAttrWidth, uint16(w),
			videoAttrHeight, uint16(h),
			videoAttrFramerate, byte(fps),
		)
		config = append(config, tlv8.MustEncode(videoAttributes, attrs)...)
	}

	return tlv8.Encode(1, config)
}
