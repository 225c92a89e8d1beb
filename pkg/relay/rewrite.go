package relay

import (
	"encoding/binary"

	"github.com/pion/rtcp"
)

const rtpHeaderSize = 12

// rewriteRTP replaces the SSRC in place and, when outPT >= 0, maps payload type
// inPT to outPT keeping the marker bit. It returns the original SSRC.
// Packets shorter than an RTP header are left untouched.
func rewriteRTP(b []byte, ssrc uint32, inPT, outPT int) (uint32, bool) {
	if len(b) < rtpHeaderSize {
		return 0, false
	}

	if outPT >= 0 && int(b[1]&0x7F) == inPT {
		b[1] = b[1]&0x80 | byte(outPT)&0x7F
	}

	incoming := binary.BigEndian.Uint32(b[8:])
	binary.BigEndian.PutUint32(b[8:], ssrc)
	return incoming, true
}

// walkRTCP calls fn for every complete sub-packet of a compound RTCP buffer
// and returns the validated prefix. A sub-packet that overruns the buffer
// stops the walk.
func walkRTCP(b []byte, fn func(pt uint8, packet []byte)) []byte {
	var offset int

	for offset+4 <= len(b) {
		size := 4 + int(binary.BigEndian.Uint16(b[offset+2:]))*4
		if offset+size > len(b) {
			break
		}

		fn(b[offset+1], b[offset:offset+size])
		offset += size
	}

	return b[:offset]
}

// rewriteSenderReport replaces the sender SSRC of an SR sub-packet.
func rewriteSenderReport(pt uint8, packet []byte, ssrc uint32) (uint32, bool) {
	if rtcp.PacketType(pt) != rtcp.TypeSenderReport || len(packet) < 8 {
		return 0, false
	}

	incoming := binary.BigEndian.Uint32(packet[4:])
	binary.BigEndian.PutUint32(packet[4:], ssrc)
	return incoming, true
}

// rewriteReceiverReport replaces the SSRC of the first report block of an RR sub-packet.
func rewriteReceiverReport(pt uint8, packet []byte, ssrc uint32) bool {
	if rtcp.PacketType(pt) != rtcp.TypeReceiverReport || len(packet) < 12 {
		return false
	}

	binary.BigEndian.PutUint32(packet[8:], ssrc)
	return true
}
