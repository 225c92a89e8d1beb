package camera

import "github.com/hapcam/hapcam/pkg/hap/tlv8"

const TypeStreamingStatus = "120"

type StreamingStatus struct {
	Status byte `tlv8:"1"`
}

//goland:noinspection ALL
const (
	StreamingStatusAvailable = 0
	StreamingStatusStreaming = 1
	StreamingStatusBusy      = 2
)

func streamingStatus(status byte) []byte {
	b, _ := tlv8.Marshal(StreamingStatus{Status: status})
	return b
}
