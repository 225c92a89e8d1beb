package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	args := &Args{
		Bin:    "ffmpeg",
		Global: "-hide_banner -v error",
		Input:  "-re -f lavfi -i testsrc=size=1280x720:rate=30",
	}
	args.AddCodec("-c:v libx264 -preset:v ultrafast -tune:v zerolatency")
	args.AddFilter("format=yuv420p")
	args.InsertFilter("scale=640:360")
	args.AddOutput("-f null -")

	require.True(t, args.HasFilters("scale="))
	require.False(t, args.HasFilters("fps="))
	require.Equal(t,
		`ffmpeg -hide_banner -v error -re -f lavfi -i testsrc=size=1280x720:rate=30 -c:v libx264 -preset:v ultrafast -tune:v zerolatency -vf "scale=640:360,format=yuv420p" -f null -`,
		args.String(),
	)
}

func TestRTP(t *testing.T) {
	r := &RTP{Address: "192.168.1.20", Port: 51000, SSRC: 0xFFFFFFFF, PayloadType: 99, PacketSize: 1378}
	require.Equal(t, "-payload_type 99 -ssrc -1 -f rtp rtp://192.168.1.20:51000?rtcpport=51001&pkt_size=1378", r.String())

	r = &RTP{
		Address: "fe80::1", Port: 51002, RTCPPort: 51002, LocalPort: 40000, SSRC: 1, PayloadType: 110,
		Key: []byte{1, 2, 3}, Salt: []byte{4, 5, 6},
	}
	require.Equal(t,
		"-payload_type 110 -ssrc 1 -f rtp -srtp_out_suite AES_CM_128_HMAC_SHA1_80 -srtp_out_params AQIDBAUG srtp://[fe80::1]:51002?rtcpport=51002&localrtpport=40000",
		r.String(),
	)
}
