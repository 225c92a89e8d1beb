package camera

import (
	"context"
	"errors"
	"fmt"

	"github.com/hapcam/hapcam/pkg/hap/tlv8"
	"github.com/rs/zerolog"
)

var (
	ErrNoStream              = errors.New("camera: no such stream")
	ErrUnknownCharacteristic = errors.New("camera: unknown characteristic")
	ErrReadOnly              = errors.New("camera: characteristic is read only")
)

// Camera is a set of stream controllers sharing options and a source.
type Camera struct {
	source  Source
	streams []*StreamController
}

func NewCamera(opts *Options, source Source, streams int, log zerolog.Logger) (*Camera, error) {
	if streams < 1 {
		return nil, fmt.Errorf("camera: wrong streams count: %d", streams)
	}

	cam := &Camera{source: source}

	for i := 0; i < streams; i++ {
		stream, err := NewStreamController(i, opts, source, log)
		if err != nil {
			return nil, err
		}
		cam.streams = append(cam.streams, stream)
	}

	return cam, nil
}

func (c *Camera) Streams() []*StreamController {
	return c.streams
}

func (c *Camera) Stream(i int) (*StreamController, error) {
	if i < 0 || i >= len(c.streams) {
		return nil, ErrNoStream
	}
	return c.streams[i], nil
}

// Read returns the value of a camera characteristic by its HAP type.
func (c *Camera) Read(stream int, charType string) ([]byte, error) {
	s, err := c.Stream(stream)
	if err != nil {
		return nil, err
	}

	switch charType {
	case TypeSupportedVideoStreamConfiguration:
		return s.SupportedVideoStreamConfiguration(), nil
	case TypeSupportedAudioStreamConfiguration:
		return s.SupportedAudioStreamConfiguration(), nil
	case TypeSupportedRTPConfiguration:
		return s.SupportedRTPConfiguration(), nil
	case TypeSelectedStreamConfiguration:
		return s.SelectedStreamConfiguration(), nil
	case TypeSetupEndpoints:
		return s.SetupEndpoints(), nil
	case TypeStreamingStatus:
		return s.StreamingStatus(), nil
	}

	return nil, ErrUnknownCharacteristic
}

// Write passes a controller write to the stream. connID identifies the HAP connection.
func (c *Camera) Write(ctx context.Context, stream int, charType string, value []byte, connID string) error {
	s, err := c.Stream(stream)
	if err != nil {
		return err
	}

	switch charType {
	case TypeSelectedStreamConfiguration:
		return s.SetSelectedStreamConfiguration(value, connID)
	case TypeSetupEndpoints:
		return s.SetSetupEndpoints(ctx, value)
	case TypeSupportedVideoStreamConfiguration, TypeSupportedAudioStreamConfiguration,
		TypeSupportedRTPConfiguration, TypeStreamingStatus:
		return ErrReadOnly
	}

	return ErrUnknownCharacteristic
}

// HandleCloseConnection stops streams owned by the connection and tells the source.
func (c *Camera) HandleCloseConnection(connID string) {
	for _, s := range c.streams {
		s.HandleCloseConnection(connID)
	}
	if c.source != nil {
		c.source.HandleCloseConnection(connID)
	}
}

// ForceStop stops every stream without notifying the source.
func (c *Camera) ForceStop() {
	for _, s := range c.streams {
		s.ForceStop()
	}
}

// StreamInfo is a readable view of one stream controller.
type StreamInfo struct {
	ID           int                        `json:"id"`
	Status       byte                       `json:"status"`
	ConnectionID string                     `json:"connection_id,omitempty"`
	Session      string                     `json:"session,omitempty"`
	VideoOnly    bool                       `json:"video_only"`
	Video        SupportedVideoStreamConfig `json:"video"`
	Audio        SupportedAudioStreamConfig `json:"audio"`
	RTP          SupportedRTPConfig         `json:"rtp"`
}

func (c *Camera) Describe() ([]StreamInfo, error) {
	infos := make([]StreamInfo, 0, len(c.streams))

	for _, s := range c.streams {
		info := StreamInfo{
			ID:           s.ID(),
			Status:       s.Status(),
			ConnectionID: s.ConnectionID(),
			VideoOnly:    s.VideoOnly(),
		}
		if id := s.SessionID(); id != nil {
			info.Session = sessionString(id)
		}

		if err := tlv8.Unmarshal(s.SupportedVideoStreamConfiguration(), &info.Video); err != nil {
			return nil, err
		}
		if err := tlv8.Unmarshal(s.SupportedAudioStreamConfiguration(), &info.Audio); err != nil {
			return nil, err
		}
		if err := tlv8.Unmarshal(s.SupportedRTPConfiguration(), &info.RTP); err != nil {
			return nil, err
		}

		infos = append(infos, info)
	}

	return infos, nil
}
