package camera

// Source produces the media for a camera. Calls come from the stream controllers
// and may overlap for different streams.
type Source interface {
	// PrepareStream must eventually call respond exactly once.
	PrepareStream(req *PrepareRequest, respond func(resp *PrepareResponse))
	HandleStreamRequest(req *StreamRequest)
	HandleCloseConnection(connID string)
}

type PrepareRequest struct {
	SessionID      []byte
	TargetAddress  string // controller address, or local address in proxy mode
	AddressVersion byte   // 0 - IPv4, 1 - IPv6

	Video *PrepareStreamInfo
	Audio *PrepareStreamInfo
}

type PrepareStreamInfo struct {
	// controller port, no-proxy mode and audio with disabled proxy
	Port          uint16
	TargetAddress string

	// relay incoming ports, proxy mode
	ProxyRTPPort  uint16
	ProxyRTCPPort uint16

	// set only when SRTP is supported
	SRTPKey  []byte
	SRTPSalt []byte
}

type PrepareResponse struct {
	Address        string
	AddressVersion byte

	Video *PrepareStreamResponse
	Audio *PrepareStreamResponse
}

type PrepareStreamResponse struct {
	Port     uint16
	SSRC     uint32
	SRTPKey  []byte
	SRTPSalt []byte

	// proxy mode: where the source sends from and which payload type it uses
	ProxyPayloadType    uint8
	ProxyServerAddress  string
	ProxyServerRTPPort  uint16
	ProxyServerRTCPPort uint16
}

const (
	StreamRequestStart       = "start"
	StreamRequestStop        = "stop"
	StreamRequestReconfigure = "reconfigure"
)

type StreamRequest struct {
	SessionID    []byte
	Type         string
	ConnectionID string

	Video *VideoInfo
	Audio *AudioInfo
}

type VideoInfo struct {
	Codec byte

	HasParams bool
	Profile   byte
	Level     byte

	HasAttributes bool
	Width         uint16
	Height        uint16
	FPS           byte

	HasRTP       bool
	PayloadType  uint8
	SSRC         uint32
	MaxBitrate   uint16 // kbps
	RTCPInterval float32
	MTU          uint16
}

type AudioInfo struct {
	Codec       string // OPUS, AAC-eld or codec number
	Channels    byte
	BitrateMode byte
	SampleRate  int // kHz, 0 if unknown
	PacketTime  byte

	HasRTP                  bool
	PayloadType             uint8
	SSRC                    uint32
	MaxBitrate              uint16
	RTCPInterval            float32
	ComfortNoisePayloadType uint8
	ComfortNoise            byte
}
