package ffmpeg

import (
	"bytes"
	"encoding/base64"
	"strconv"
	"strings"
)

type Args struct {
	Bin     string   // ffmpeg
	Global  string   // -hide_banner -v error
	Input   string   // -re -f lavfi -i testsrc=size=1280x720:rate=30
	Codecs  []string // -c:v libx264 -g:v 30 -preset:v ultrafast -tune:v zerolatency
	Filters []string // scale=1280:720
	Outputs []string // -f rtp srtp://...
}

func (a *Args) AddCodec(codec string) {
	a.Codecs = append(a.Codecs, codec)
}

func (a *Args) AddFilter(filter string) {
	a.Filters = append(a.Filters, filter)
}

func (a *Args) InsertFilter(filter string) {
	a.Filters = append([]string{filter}, a.Filters...)
}

func (a *Args) AddOutput(output string) {
	a.Outputs = append(a.Outputs, output)
}

func (a *Args) HasFilters(filters ...string) bool {
	for _, f1 := range a.Filters {
		for _, f2 := range filters {
			if strings.HasPrefix(f1, f2) {
				return true
			}
		}
	}

	return false
}

func (a *Args) String() string {
	b := bytes.NewBuffer(make([]byte, 0, 512))

	b.WriteString(a.Bin)

	if a.Global != "" {
		b.WriteByte(' ')
		b.WriteString(a.Global)
	}

	b.WriteByte(' ')
	b.WriteString(a.Input)

	for _, codec := range a.Codecs {
		b.WriteByte(' ')
		b.WriteString(codec)
	}

	if len(a.Filters) > 0 {
		for i, filter := range a.Filters {
			if i == 0 {
				b.WriteString(` -vf "`)
			} else {
				b.WriteByte(',')
			}
			b.WriteString(filter)
		}
		b.WriteByte('"')
	}

	for _, output := range a.Outputs {
		b.WriteByte(' ')
		b.WriteString(output)
	}

	return b.String()
}

// RTP is one RTP or SRTP output of ffmpeg
type RTP struct {
	Address     string
	Port        uint16
	RTCPPort    uint16 // Port + 1 if zero
	LocalPort   uint16 // optional source port
	SSRC        uint32
	PayloadType uint8
	PacketSize  int    // 1378 for video, 188 for audio
	Key, Salt   []byte // SRTP when both are set
}

func (r *RTP) String() string {
	b := bytes.NewBuffer(make([]byte, 0, 256))

	b.WriteString("-payload_type ")
	b.WriteString(strconv.Itoa(int(r.PayloadType)))
	b.WriteString(" -ssrc ")
	b.WriteString(strconv.FormatInt(int64(int32(r.SSRC)), 10))
	b.WriteString(" -f rtp")

	scheme := "rtp"
	if len(r.Key) > 0 && len(r.Salt) > 0 {
		scheme = "srtp"
		params := make([]byte, 0, len(r.Key)+len(r.Salt))
		params = append(params, r.Key...)
		params = append(params, r.Salt...)
		b.WriteString(" -srtp_out_suite AES_CM_128_HMAC_SHA1_80 -srtp_out_params ")
		b.WriteString(base64.StdEncoding.EncodeToString(params))
	}

	rtcpPort := r.RTCPPort
	if rtcpPort == 0 {
		rtcpPort = r.Port + 1
	}

	b.WriteByte(' ')
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(joinHost(r.Address))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(int(r.Port)))
	b.WriteString("?rtcpport=")
	b.WriteString(strconv.Itoa(int(rtcpPort)))
	if r.LocalPort != 0 {
		b.WriteString("&localrtpport=")
		b.WriteString(strconv.Itoa(int(r.LocalPort)))
	}
	if r.PacketSize > 0 {
		b.WriteString("&pkt_size=")
		b.WriteString(strconv.Itoa(r.PacketSize))
	}

	return b.String()
}

func joinHost(host string) string {
	if strings.IndexByte(host, ':') >= 0 {
		return "[" + host + "]"
	}
	return host
}
