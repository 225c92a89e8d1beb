package camera

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hapcam/hapcam/pkg/relay"
	"github.com/pion/srtp/v2"
	"github.com/pion/transport/v3/stdnet"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrNoResponse = errors.New("camera: source did not prepare the stream")

// StreamController negotiates one RTP stream of a camera with a controller.
type StreamController struct {
	// OnStatus is called with the new streaming status value after every change
	OnStatus func(value []byte)

	id     int
	opts   Options
	source Source
	log    zerolog.Logger

	supportedRTP   []byte
	supportedVideo []byte
	supportedAudio []byte
	videoOnly      bool

	mu         sync.Mutex
	status     byte
	selected   []byte
	sessionID  []byte
	connID     string
	response   []byte
	videoRelay *relay.Relay
	audioRelay *relay.Relay
	generation uint64 // changes when relays are replaced or dropped
}

func NewStreamController(id int, opts *Options, source Source, log zerolog.Logger) (*StreamController, error) {
	if id < 0 {
		return nil, fmt.Errorf("camera: wrong stream id: %d", id)
	}
	if opts == nil {
		return nil, errors.New("camera: options are missing")
	}
	if source == nil {
		return nil, errors.New("camera: source is missing")
	}
	if opts.Video == nil {
		return nil, errors.New("camera: video options are missing")
	}
	if opts.Audio == nil {
		return nil, errors.New("camera: audio options are missing")
	}

	c := &StreamController{
		id:     id,
		opts:   *opts,
		source: source,
		log:    log,
		status: StreamingStatusAvailable,
	}

	if !opts.SRTP {
		log.Warn().Msgf("[homekit] stream=%d SRTP disabled, newer controllers may refuse the stream", id)
	}
	c.supportedRTP = supportedRTPConfiguration(opts.SRTP)

	var err error
	if c.supportedVideo, err = supportedVideoConfiguration(opts.Video); err != nil {
		return nil, err
	}
	if c.supportedAudio, c.videoOnly, err = supportedAudioConfiguration(opts.Audio, log); err != nil {
		return nil, err
	}

	if c.opts.Proxy && c.opts.Net == nil {
		if c.opts.Net, err = stdnet.NewNet(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *StreamController) ID() int {
	return c.id
}

func (c *StreamController) VideoOnly() bool {
	return c.videoOnly
}

func (c *StreamController) Status() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *StreamController) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

func (c *StreamController) SessionID() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *StreamController) StreamingStatus() []byte {
	return streamingStatus(c.Status())
}

func (c *StreamController) SupportedRTPConfiguration() []byte {
	return c.supportedRTP
}

func (c *StreamController) SupportedVideoStreamConfiguration() []byte {
	return c.supportedVideo
}

func (c *StreamController) SupportedAudioStreamConfiguration() []byte {
	return c.supportedAudio
}

func (c *StreamController) SelectedStreamConfiguration() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SetupEndpoints returns the last setup response, nil before the first setup.
func (c *StreamController) SetupEndpoints() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.response
}

// SetSelectedStreamConfiguration handles start, stop and reconfigure commands.
// Malformed values are logged and ignored.
func (c *StreamController) SetSelectedStreamConfiguration(value []byte, connID string) error {
	config, err := parseSelectedConfiguration(value, c.log)

	c.mu.Lock()
	c.selected = append([]byte(nil), value...)

	if err != nil {
		c.mu.Unlock()
		c.log.Debug().Err(err).Msgf("[homekit] stream=%d unexpected selected stream configuration", c.id)
		return nil
	}

	c.sessionID = config.SessionID

	switch config.Command {
	case SessionCommandStart:
		if c.connID != "" && c.connID != connID {
			c.log.Debug().Msgf("[homekit] stream=%d start from other connection=%s owner=%s", c.id, connID, c.connID)
		} else {
			c.connID = connID
		}
		c.mu.Unlock()

		c.startStream(config, connID, false)

	case SessionCommandEnd:
		if c.connID != "" && c.connID != connID {
			c.log.Debug().Msgf("[homekit] stream=%d stop from other connection=%s owner=%s", c.id, connID, c.connID)
		} else {
			c.connID = ""
		}
		c.mu.Unlock()

		c.stopStream(connID, false)

	case SessionCommandReconfigure:
		c.mu.Unlock()

		c.startStream(config, connID, true)

	default:
		c.mu.Unlock()
		c.log.Debug().Msgf("[homekit] stream=%d unhandled session command: %d", c.id, config.Command)
	}

	return nil
}

// ForceStop tears the stream down without telling the source.
func (c *StreamController) ForceStop() {
	c.mu.Lock()
	c.connID = ""
	c.mu.Unlock()

	c.stopStream("", true)
}

// HandleCloseConnection silently stops the stream if connID owns it.
func (c *StreamController) HandleCloseConnection(connID string) {
	c.mu.Lock()
	owner := c.connID != "" && c.connID == connID
	if owner {
		c.connID = ""
	}
	c.mu.Unlock()

	if owner {
		c.log.Debug().Msgf("[homekit] stream=%d connection closed: %s", c.id, connID)
		c.stopStream("", true)
	}
}

func (c *StreamController) startStream(config *selectedConfiguration, connID string, reconfigure bool) {
	req := &StreamRequest{
		SessionID:    config.SessionID,
		Type:         StreamRequestStart,
		ConnectionID: connID,
		Video:        config.Video,
		Audio:        config.Audio,
	}

	if reconfigure {
		req.Type = StreamRequestReconfigure
	} else if c.opts.Proxy {
		c.mu.Lock()
		video, audio := c.videoRelay, c.audioRelay
		c.mu.Unlock()

		if video != nil && config.Video != nil && config.Video.HasRTP {
			video.SetOutgoingPayloadType(config.Video.PayloadType)
		}
		if audio != nil && config.Audio != nil && config.Audio.HasRTP {
			audio.SetOutgoingPayloadType(config.Audio.PayloadType)
		}
	}

	c.log.Debug().Msgf("[homekit] stream=%d %s session=%s", c.id, req.Type, sessionString(req.SessionID))

	c.source.HandleStreamRequest(req)

	c.setStatus(StreamingStatusStreaming)
}

func (c *StreamController) stopStream(connID string, silent bool) {
	c.mu.Lock()
	sessionID := c.sessionID
	video, audio := c.dropRelays()
	c.mu.Unlock()

	if !silent {
		c.source.HandleStreamRequest(&StreamRequest{
			SessionID:    sessionID,
			Type:         StreamRequestStop,
			ConnectionID: connID,
		})
	}

	closeRelays(video, audio)

	c.log.Debug().Msgf("[homekit] stream=%d stop session=%s silent=%t", c.id, sessionString(sessionID), silent)

	c.setStatus(StreamingStatusAvailable)
}

func (c *StreamController) setStatus(status byte) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()

	if c.OnStatus != nil {
		c.OnStatus(streamingStatus(status))
	}
}

// SetSetupEndpoints prepares the stream with the source and caches the response.
// It returns after the response is cached, when relays can't be bound or ctx is done.
func (c *StreamController) SetSetupEndpoints(ctx context.Context, value []byte) error {
	setup, err := parseSetupEndpoints(value)
	if err != nil {
		c.log.Debug().Err(err).Msgf("[homekit] stream=%d unexpected setup endpoints", c.id)
		return nil
	}

	c.log.Debug().Msgf(
		"[homekit] stream=%d setup session=%s address=%s video=%d audio=%d crypto=%d/%d",
		c.id, sessionString(setup.SessionID), setup.Address.IPAddr,
		setup.Address.VideoRTPPort, setup.Address.AudioRTPPort,
		setup.VideoCrypto.CryptoType, setup.AudioCrypto.CryptoType,
	)

	c.mu.Lock()
	c.sessionID = setup.SessionID
	c.mu.Unlock()

	req := &PrepareRequest{
		SessionID:      setup.SessionID,
		AddressVersion: setup.Address.IPVersion,
		Video:          &PrepareStreamInfo{},
		Audio:          &PrepareStreamInfo{},
	}

	if c.opts.SRTP {
		c.checkCrypto("video", setup.VideoCrypto)
		c.checkCrypto("audio", setup.AudioCrypto)

		req.Video.SRTPKey = []byte(setup.VideoCrypto.MasterKey)
		req.Video.SRTPSalt = []byte(setup.VideoCrypto.MasterSalt)
		req.Audio.SRTPKey = []byte(setup.AudioCrypto.MasterKey)
		req.Audio.SRTPSalt = []byte(setup.AudioCrypto.MasterSalt)
	}

	if !c.opts.Proxy {
		req.TargetAddress = setup.Address.IPAddr
		req.Video.Port = setup.Address.VideoRTPPort
		req.Audio.Port = setup.Address.AudioRTPPort

		resp, err := c.prepare(ctx, req)
		if err != nil {
			return err
		}

		b, err := c.directResponse(setup.SessionID, resp)
		if err != nil {
			return err
		}

		c.mu.Lock()
		c.response = b
		c.mu.Unlock()
		return nil
	}

	local := c.opts.Address
	if local == "" {
		if local, err = localAddress(c.opts.Net, setup.Address.IPVersion == AddressVersionIPv6); err != nil {
			return err
		}
	}
	req.TargetAddress = local

	video, audio := c.newRelays(setup)
	gen := c.replaceRelays(video, audio)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return video.Setup(gctx)
	})
	if audio != nil {
		g.Go(func() error {
			return audio.Setup(gctx)
		})
	} else {
		req.Audio.Port = setup.Address.AudioRTPPort
		req.Audio.TargetAddress = setup.Address.IPAddr
	}

	if err = g.Wait(); err != nil {
		if c.releaseRelays(gen) {
			closeRelays(video, audio)
		}
		if errors.Is(err, relay.ErrClosed) {
			c.log.Debug().Msgf("[homekit] stream=%d setup cancelled", c.id)
			return nil
		}
		return fmt.Errorf("camera: relay setup: %w", err)
	}

	req.Video.ProxyRTPPort = video.IncomingRTPPort()
	req.Video.ProxyRTCPPort = video.IncomingRTCPPort()
	if audio != nil {
		req.Audio.ProxyRTPPort = audio.IncomingRTPPort()
		req.Audio.ProxyRTCPPort = audio.IncomingRTCPPort()
	}

	resp, err := c.prepare(ctx, req)
	if err != nil {
		if c.releaseRelays(gen) {
			closeRelays(video, audio)
		}
		return err
	}

	b, err := c.proxyResponse(setup.SessionID, local, resp, video, audio)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.log.Debug().Msgf("[homekit] stream=%d setup superseded", c.id)
		return nil
	}
	c.response = b
	c.mu.Unlock()

	return nil
}

// prepare waits for the single answer of the source
func (c *StreamController) prepare(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error) {
	ch := make(chan *PrepareResponse, 1)
	var once sync.Once

	c.source.PrepareStream(req, func(resp *PrepareResponse) {
		once.Do(func() {
			ch <- resp
		})
	})

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, ErrNoResponse
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *StreamController) directResponse(sessionID []byte, resp *PrepareResponse) ([]byte, error) {
	res := &SetupEndpointsResponse{
		SessionID: string(sessionID),
		Status:    SetupStatusSuccess,
		Address: Addr{
			IPVersion: resp.AddressVersion,
			IPAddr:    resp.Address,
		},
		VideoCrypto: noCrypto,
		AudioCrypto: noCrypto,
	}

	if v := resp.Video; v != nil {
		res.Address.VideoRTPPort = v.Port
		res.VideoSSRC = v.SSRC
		if c.opts.SRTP {
			res.VideoCrypto = CryptoSuite{CryptoAES_CM_128_HMAC_SHA1_80, string(v.SRTPKey), string(v.SRTPSalt)}
		}
	}

	if a := resp.Audio; a != nil {
		res.Address.AudioRTPPort = a.Port
		res.AudioSSRC = a.SSRC
		if c.opts.SRTP {
			res.AudioCrypto = CryptoSuite{CryptoAES_CM_128_HMAC_SHA1_80, string(a.SRTPKey), string(a.SRTPSalt)}
		}
	}

	return res.Marshal()
}

func (c *StreamController) proxyResponse(sessionID []byte, local string, resp *PrepareResponse, video, audio *relay.Relay) ([]byte, error) {
	res := &SetupEndpointsResponse{
		SessionID: string(sessionID),
		Status:    SetupStatusSuccess,
		Address: Addr{
			IPVersion:    addressVersionOf(local),
			IPAddr:       local,
			VideoRTPPort: video.OutgoingLocalPort(),
		},
		VideoCrypto: noCrypto,
		AudioCrypto: noCrypto,
		VideoSSRC:   video.OutgoingSSRC(),
	}

	if v := resp.Video; v != nil {
		video.SetIncomingPayloadType(v.ProxyPayloadType)
		video.SetServer(v.ProxyServerAddress, v.ProxyServerRTPPort, v.ProxyServerRTCPPort)
	}

	if audio != nil {
		res.Address.AudioRTPPort = audio.OutgoingLocalPort()
		res.AudioSSRC = audio.OutgoingSSRC()

		if a := resp.Audio; a != nil {
			audio.SetIncomingPayloadType(a.ProxyPayloadType)
			audio.SetServer(a.ProxyServerAddress, a.ProxyServerRTPPort, a.ProxyServerRTCPPort)
		}
	} else if a := resp.Audio; a != nil {
		res.Address.AudioRTPPort = a.Port
		res.AudioSSRC = a.SSRC
	}

	return res.Marshal()
}

func (c *StreamController) newRelays(setup *setupEndpoints) (video, audio *relay.Relay) {
	network := "udp4"
	if setup.Address.IPVersion == AddressVersionIPv6 {
		network = "udp6"
	}

	cfg := relay.Config{
		Net:             c.opts.Net,
		Network:         network,
		BasePort:        c.opts.RelayPort,
		OutgoingAddress: setup.Address.IPAddr,
		Logger:          c.log,
	}

	cfg.OutgoingPort = setup.Address.VideoRTPPort
	cfg.OutgoingSSRC = randomSSRC()
	video = relay.New(cfg)

	if !c.opts.DisableAudioProxy {
		cfg.OutgoingPort = setup.Address.AudioRTPPort
		cfg.OutgoingSSRC = randomSSRC()
		cfg.Disabled = c.videoOnly
		audio = relay.New(cfg)
	}

	return
}

// replaceRelays registers new relays and closes the previous ones.
func (c *StreamController) replaceRelays(video, audio *relay.Relay) uint64 {
	c.mu.Lock()
	oldVideo, oldAudio := c.dropRelays()
	c.videoRelay, c.audioRelay = video, audio
	gen := c.generation
	c.mu.Unlock()

	closeRelays(oldVideo, oldAudio)

	return gen
}

// releaseRelays unregisters the relays of generation gen.
// It returns false when they were already dropped by someone else.
func (c *StreamController) releaseRelays(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.dropRelays()
	return true
}

// dropRelays must be called with mu held
func (c *StreamController) dropRelays() (video, audio *relay.Relay) {
	video, audio = c.videoRelay, c.audioRelay
	c.videoRelay, c.audioRelay = nil, nil
	c.generation++
	return
}

func (c *StreamController) checkCrypto(kind string, crypto CryptoSuite) {
	if crypto.CryptoType != CryptoAES_CM_128_HMAC_SHA1_80 {
		c.log.Debug().Msgf("[homekit] stream=%d %s crypto suite: %d", c.id, kind, crypto.CryptoType)
		return
	}

	_, err := srtp.CreateContext([]byte(crypto.MasterKey), []byte(crypto.MasterSalt), srtp.ProtectionProfileAes128CmHmacSha1_80)
	if err != nil {
		c.log.Warn().Err(err).Msgf("[homekit] stream=%d %s srtp params", c.id, kind)
	}
}

func closeRelays(relays ...*relay.Relay) {
	for _, r := range relays {
		if r != nil {
			_ = r.Close()
		}
	}
}

func randomSSRC() uint32 {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return binary.LittleEndian.Uint32(b)
}

func sessionString(id []byte) string {
	if u, err := uuid.FromBytes(id); err == nil {
		return u.String()
	}
	return hex.EncodeToString(id)
}
