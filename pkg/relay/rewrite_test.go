package relay

import (
	"testing"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func marshalRTP(t *testing.T, pt uint8, marker bool, ssrc uint32) []byte {
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    pt,
			SequenceNumber: 1234,
			Timestamp:      90000,
			SSRC:           ssrc,
		},
		Payload: []byte{1, 2, 3, 4},
	}
	b, err := pkt.Marshal()
	require.Nil(t, err)
	return b
}

func unmarshalRTP(t *testing.T, b []byte) *rtp.Packet {
	var pkt rtp.Packet
	require.Nil(t, pkt.Unmarshal(b))
	return &pkt
}

func TestRewriteRTP(t *testing.T) {
	b := marshalRTP(t, 99, true, 0xDEADBEEF)

	incoming, ok := rewriteRTP(b, 0x01020304, 99, 110)
	require.True(t, ok)
	require.Equal(t, uint32(0xDEADBEEF), incoming)

	pkt := unmarshalRTP(t, b)
	require.Equal(t, uint32(0x01020304), pkt.SSRC)
	require.Equal(t, uint8(110), pkt.PayloadType)
	require.True(t, pkt.Marker)
	require.Equal(t, uint16(1234), pkt.SequenceNumber)
	require.Equal(t, []byte{1, 2, 3, 4}, pkt.Payload)
}

func TestRewriteRTPOtherPayloadType(t *testing.T) {
	b := marshalRTP(t, 100, false, 1)

	_, ok := rewriteRTP(b, 2, 99, 110)
	require.True(t, ok)

	pkt := unmarshalRTP(t, b)
	require.Equal(t, uint32(2), pkt.SSRC)
	require.Equal(t, uint8(100), pkt.PayloadType)
	require.False(t, pkt.Marker)

	// outgoing payload type not negotiated yet
	b = marshalRTP(t, 99, true, 1)
	_, ok = rewriteRTP(b, 2, 99, -1)
	require.True(t, ok)

	pkt = unmarshalRTP(t, b)
	require.Equal(t, uint8(99), pkt.PayloadType)
	require.True(t, pkt.Marker)
}

func TestRewriteRTPShort(t *testing.T) {
	b := []byte{0x80, 99, 0, 1, 0, 0, 0, 2, 0, 0, 0}
	src := append([]byte(nil), b...)

	_, ok := rewriteRTP(b, 5, 99, 110)
	require.False(t, ok)
	require.Equal(t, src, b)
}

func TestWalkRTCP(t *testing.T) {
	sr, err := (&rtcp.SenderReport{SSRC: 0xAAAA0001, NTPTime: 1, RTPTime: 2, PacketCount: 3, OctetCount: 4}).Marshal()
	require.Nil(t, err)

	sdes, err := rtcp.NewCNAMESourceDescription(0xAAAA0001, "camera").Marshal()
	require.Nil(t, err)

	rr, err := (&rtcp.ReceiverReport{SSRC: 7, Reports: []rtcp.ReceptionReport{{SSRC: 8}}}).Marshal()
	require.Nil(t, err)

	b := append(append(append([]byte{}, sr...), sdes...), rr...)

	var types []uint8
	var learned uint32
	out := walkRTCP(b, func(pt uint8, packet []byte) {
		types = append(types, pt)
		if ssrc, ok := rewriteSenderReport(pt, packet, 0x0B0B0B0B); ok {
			learned = ssrc
		}
	})

	require.Len(t, out, len(b))
	require.Equal(t, []uint8{200, 202, 201}, types)
	require.Equal(t, uint32(0xAAAA0001), learned)

	// only the SR sender field changes
	require.Equal(t, sdes, out[len(sr):len(sr)+len(sdes)])
	require.Equal(t, rr, out[len(sr)+len(sdes):])

	packets, err := rtcp.Unmarshal(out)
	require.Nil(t, err)
	require.Len(t, packets, 3)
	require.Equal(t, uint32(0x0B0B0B0B), packets[0].(*rtcp.SenderReport).SSRC)
	require.Equal(t, uint32(3), packets[0].(*rtcp.SenderReport).PacketCount)
}

func TestWalkRTCPTruncated(t *testing.T) {
	sr, err := (&rtcp.SenderReport{SSRC: 1}).Marshal()
	require.Nil(t, err)

	// header promises 40 bytes of payload
	b := append(append([]byte{}, sr...), 0x81, 201, 0, 10, 1, 2, 3, 4)

	var count int
	out := walkRTCP(b, func(uint8, []byte) { count++ })
	require.Equal(t, 1, count)
	require.Equal(t, sr, out)

	require.Empty(t, walkRTCP([]byte{0x80, 200}, func(uint8, []byte) { count++ }))
	require.Equal(t, 1, count)
}

func TestRewriteReceiverReport(t *testing.T) {
	rr, err := (&rtcp.ReceiverReport{SSRC: 7, Reports: []rtcp.ReceptionReport{{SSRC: 8, LastSequenceNumber: 100}}}).Marshal()
	require.Nil(t, err)

	require.True(t, rewriteReceiverReport(201, rr, 0x12345678))

	packets, err := rtcp.Unmarshal(rr)
	require.Nil(t, err)

	report := packets[0].(*rtcp.ReceiverReport)
	require.Equal(t, uint32(7), report.SSRC)
	require.Equal(t, uint32(0x12345678), report.Reports[0].SSRC)
	require.Equal(t, uint32(100), report.Reports[0].LastSequenceNumber)

	// no report blocks
	empty, err := (&rtcp.ReceiverReport{SSRC: 7}).Marshal()
	require.Nil(t, err)
	require.False(t, rewriteReceiverReport(201, empty, 1))

	require.False(t, rewriteReceiverReport(200, rr, 1))
}
