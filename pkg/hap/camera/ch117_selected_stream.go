package camera

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/hapcam/hapcam/pkg/hap/tlv8"
	"github.com/rs/zerolog"
)

const TypeSelectedStreamConfiguration = "117"

const (
	SessionCommandEnd         = 0
	SessionCommandStart       = 1
	SessionCommandSuspend     = 2
	SessionCommandResume      = 3
	SessionCommandReconfigure = 4
)

// selected configuration record types
const (
	selectedSession = 1
	selectedVideo   = 2
	selectedAudio   = 3

	sessionIdentifier = 1
	sessionCommand    = 2

	rtpPayloadType             = 1
	rtpSSRC                    = 2
	rtpMaxBitrate              = 3
	rtpRTCPInterval            = 4
	rtpMaxMTU                  = 5
	rtpComfortNoisePayloadType = 6
)

var errNoSession = errors.New("camera: selected configuration without session")

type selectedConfiguration struct {
	SessionID []byte
	Command   byte
	Video     *VideoInfo
	Audio     *AudioInfo
}

func parseSelectedConfiguration(b []byte, log zerolog.Logger) (*selectedConfiguration, error) {
	root, err := newRecords(b)
	if err != nil {
		return nil, err
	}

	if !root.has(selectedSession) {
		return nil, errNoSession
	}

	session := root.sub(selectedSession)
	config := &selectedConfiguration{
		SessionID: session.bytes(sessionIdentifier),
		Command:   session.u8(sessionCommand),
	}
	if !session.has(sessionCommand) {
		return nil, errors.New("camera: selected configuration without command")
	}
	if err = root.err(); err != nil {
		return nil, err
	}

	if root.has(selectedVideo) {
		config.Video = parseVideoInfo(root.sub(selectedVideo))
	}

	if root.has(selectedAudio) {
		config.Audio = parseAudioInfo(root.sub(selectedAudio), log)
	}

	if err = root.err(); err != nil {
		return nil, err
	}

	return config, nil
}

func parseVideoInfo(video *records) *VideoInfo {
	info := &VideoInfo{Codec: video.u8(videoCodec)}

	if video.has(videoParams) {
		params := video.sub(videoParams)
		info.HasParams = true
		info.Profile = params.u8(videoParamProfileID)
		info.Level = params.u8(videoParamLevel)
	}

	if video.has(videoAttributes) {
		attrs := video.sub(videoAttributes)
		info.HasAttributes = true
		info.Width = attrs.u16(videoAttrWidth)
		info.Height = attrs.u16(videoAttrHeight)
		info.FPS = attrs.u8(videoAttrFramerate)
	}

	if video.has(videoRTPParams) {
		params := video.sub(videoRTPParams)
		info.HasRTP = params.has(rtpPayloadType)
		info.PayloadType = params.u8(rtpPayloadType)
		info.SSRC = params.u32(rtpSSRC)
		info.MaxBitrate = params.u16(rtpMaxBitrate)
		info.RTCPInterval = params.f32(rtpRTCPInterval)
		info.MTU = params.u16(rtpMaxMTU)
	}

	return info
}

func parseAudioInfo(audio *records, log zerolog.Logger) *AudioInfo {
	info := &AudioInfo{}

	switch codec := audio.u8(audioCodec); codec {
	case AudioCodecTypeOpus:
		info.Codec = AudioCodecOpus
	case AudioCodecTypeAACELD:
		info.Codec = AudioCodecAACELD
	default:
		log.Debug().Msgf("[homekit] unexpected audio codec: %d", codec)
		info.Codec = strconv.Itoa(int(codec))
	}

	params := audio.sub(audioParams)
	info.Channels = params.u8(audioParamChannels)
	info.BitrateMode = params.u8(audioParamBitrate)
	info.PacketTime = params.u8(audioParamPacketTime)

	rate := params.u8(audioParamSampleRate)
	if khz, ok := sampleRateKHz(rate); ok {
		info.SampleRate = khz
	} else {
		log.Debug().Msgf("[homekit] unexpected audio sample rate: %d", rate)
	}

	rtp := audio.sub(audioRTPParams)
	info.HasRTP = rtp.has(rtpPayloadType)
	info.PayloadType = rtp.u8(rtpPayloadType)
	info.SSRC = rtp.u32(rtpSSRC)
	info.MaxBitrate = rtp.u16(rtpMaxBitrate)
	info.RTCPInterval = rtp.f32(rtpRTCPInterval)
	info.ComfortNoisePayloadType = rtp.u8(rtpComfortNoisePayloadType)

	info.ComfortNoise = audio.u8(audioComfortNoise)

	return info
}

// records reads little endian fields from a decoded TLV string.
// Missing fields read as zero, short fields record an error shared
// with all nested records.
type records struct {
	m     map[byte][]byte
	first *error
}

func newRecords(b []byte) (*records, error) {
	m, err := tlv8.Decode(b)
	if err != nil {
		return nil, err
	}
	return &records{m: m, first: new(error)}, nil
}

func (r *records) has(t byte) bool {
	_, ok := r.m[t]
	return ok
}

func (r *records) err() error {
	return *r.first
}

func (r *records) fail(err error) {
	if *r.first == nil {
		*r.first = err
	}
}

func (r *records) field(t byte, size int) []byte {
	v, ok := r.m[t]
	if !ok {
		return nil
	}
	if len(v) < size {
		r.fail(fmt.Errorf("camera: record %d has %d bytes, want %d", t, len(v), size))
		return nil
	}
	return v
}

func (r *records) bytes(t byte) []byte {
	return r.m[t]
}

func (r *records) str(t byte) string {
	return string(r.m[t])
}

func (r *records) u8(t byte) byte {
	if v := r.field(t, 1); v != nil {
		return v[0]
	}
	return 0
}

func (r *records) u16(t byte) uint16 {
	if v := r.field(t, 2); v != nil {
		return binary.LittleEndian.Uint16(v)
	}
	return 0
}

func (r *records) u32(t byte) uint32 {
	if v := r.field(t, 4); v != nil {
		return binary.LittleEndian.Uint32(v)
	}
	return 0
}

func (r *records) f32(t byte) float32 {
	return math.Float32frombits(r.u32(t))
}

// sub decodes a nested TLV string, an absent record gives an empty set.
func (r *records) sub(t byte) *records {
	m, err := tlv8.Decode(r.m[t])
	if err != nil {
		r.fail(fmt.Errorf("camera: record %d: %w", t, err))
	}
	return &records{m: m, first: r.first}
}
