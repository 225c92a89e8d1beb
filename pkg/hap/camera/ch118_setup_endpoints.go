package camera

import (
	"errors"

	"github.com/hapcam/hapcam/pkg/hap/tlv8"
)

const TypeSetupEndpoints = "118"

const (
	SetupStatusSuccess = 0
	SetupStatusBusy    = 1
	SetupStatusError   = 2

	AddressVersionIPv4 = 0
	AddressVersionIPv6 = 1
)

// setup endpoints record types
const (
	setupSessionID   = 1
	setupStatus      = 2
	setupAddress     = 3
	setupVideoCrypto = 4
	setupAudioCrypto = 5

	addressVersion   = 1
	addressIP        = 2
	addressVideoPort = 3
	addressAudioPort = 4

	cryptoType       = 1
	cryptoMasterKey  = 2
	cryptoMasterSalt = 3
)

type SetupEndpointsResponse struct {
	SessionID   string      `tlv8:"1"`
	Status      byte        `tlv8:"2"`
	Address     Addr        `tlv8:"3"`
	VideoCrypto CryptoSuite `tlv8:"4"`
	AudioCrypto CryptoSuite `tlv8:"5"`
	VideoSSRC   uint32      `tlv8:"6"`
	AudioSSRC   uint32      `tlv8:"7"`
}

type Addr struct {
	IPVersion    byte   `tlv8:"1"`
	IPAddr       string `tlv8:"2"`
	VideoRTPPort uint16 `tlv8:"3"`
	AudioRTPPort uint16 `tlv8:"4"`
}

type CryptoSuite struct {
	CryptoType byte   `tlv8:"1"`
	MasterKey  string `tlv8:"2"` // 16 (AES_CM_128) or 32 (AES_256_CM)
	MasterSalt string `tlv8:"3"` // 14 byte
}

// noCrypto is sent when SRTP keys are not negotiated here
var noCrypto = CryptoSuite{CryptoType: CryptoNone}

// setupEndpoints is the controller side of a setup write
type setupEndpoints struct {
	SessionID   []byte
	Address     Addr
	VideoCrypto CryptoSuite
	AudioCrypto CryptoSuite
}

func parseSetupEndpoints(b []byte) (*setupEndpoints, error) {
	root, err := newRecords(b)
	if err != nil {
		return nil, err
	}

	if !root.has(setupSessionID) {
		return nil, errors.New("camera: setup without session")
	}
	if !root.has(setupAddress) {
		return nil, errors.New("camera: setup without address")
	}

	address := root.sub(setupAddress)
	setup := &setupEndpoints{
		SessionID: root.bytes(setupSessionID),
		Address: Addr{
			IPVersion:    address.u8(addressVersion),
			IPAddr:       address.str(addressIP),
			VideoRTPPort: address.u16(addressVideoPort),
			AudioRTPPort: address.u16(addressAudioPort),
		},
		VideoCrypto: parseCrypto(root, setupVideoCrypto),
		AudioCrypto: parseCrypto(root, setupAudioCrypto),
	}

	if setup.Address.IPAddr == "" {
		return nil, errors.New("camera: setup with empty address")
	}

	if err = root.err(); err != nil {
		return nil, err
	}

	return setup, nil
}

func parseCrypto(root *records, t byte) CryptoSuite {
	if !root.has(t) {
		return noCrypto
	}
	crypto := root.sub(t)
	return CryptoSuite{
		CryptoType: crypto.u8(cryptoType),
		MasterKey:  crypto.str(cryptoMasterKey),
		MasterSalt: crypto.str(cryptoMasterSalt),
	}
}

func (s *SetupEndpointsResponse) Marshal() ([]byte, error) {
	return tlv8.Marshal(s)
}
