package homekit

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/hapcam/hapcam/pkg/ffmpeg"
	"github.com/hapcam/hapcam/pkg/hap/camera"
	"github.com/hapcam/hapcam/pkg/shell"
	"github.com/hapcam/hapcam/pkg/udp"
	"github.com/rs/zerolog"
)

const (
	proxyVideoPayloadType = 99
	proxyAudioPayloadType = 110

	defaultMTU = 1378
)

// source streams the ffmpeg input as H264 RTP, video only
type source struct {
	cfg   FFmpegConfig
	proxy bool
	log   zerolog.Logger

	// exec starts the command line, replaced in tests
	exec func(cmdline string) (io.Closer, error)

	mu      sync.Mutex
	pending map[uuid.UUID]*session
	ongoing map[uuid.UUID]*session
}

type session struct {
	id      uuid.UUID
	connID  string
	address string

	videoPort     uint16
	videoRTCPPort uint16
	localPort     uint16
	ssrc          uint32
	payloadType   uint8
	key, salt     []byte

	process io.Closer
}

func newSource(cfg FFmpegConfig, proxy bool, log zerolog.Logger) *source {
	s := &source{
		cfg:     cfg,
		proxy:   proxy,
		log:     log,
		pending: map[uuid.UUID]*session{},
		ongoing: map[uuid.UUID]*session{},
	}
	s.exec = s.start
	return s
}

func (s *source) PrepareStream(req *camera.PrepareRequest, respond func(resp *camera.PrepareResponse)) {
	id, err := uuid.FromBytes(req.SessionID)
	if err != nil {
		s.log.Warn().Err(err).Msg("[homekit] prepare without session uuid")
		respond(nil)
		return
	}

	var resp *camera.PrepareResponse
	var sess *session

	if s.proxy {
		resp, sess, err = s.prepareProxy(req)
	} else {
		resp, sess, err = s.prepareDirect(req)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("session", id.String()).Msg("[homekit] prepare")
		respond(nil)
		return
	}

	sess.id = id

	s.mu.Lock()
	s.pending[id] = sess
	s.mu.Unlock()

	s.log.Debug().Msgf("[homekit] prepared session=%s target=%s:%d", id, sess.address, sess.videoPort)

	respond(resp)
}

// prepareDirect sends straight to the controller, echoing its ports and keys
func (s *source) prepareDirect(req *camera.PrepareRequest) (*camera.PrepareResponse, *session, error) {
	local, err := localAddress(req.TargetAddress, req.Video.Port)
	if err != nil {
		return nil, nil, err
	}

	sess := &session{
		address:       req.TargetAddress,
		videoPort:     req.Video.Port,
		videoRTCPPort: req.Video.Port,
		ssrc:          randomSSRC(),
		key:           req.Video.SRTPKey,
		salt:          req.Video.SRTPSalt,
	}

	resp := &camera.PrepareResponse{
		Address:        local,
		AddressVersion: req.AddressVersion,
		Video: &camera.PrepareStreamResponse{
			Port:     req.Video.Port,
			SSRC:     sess.ssrc,
			SRTPKey:  req.Video.SRTPKey,
			SRTPSalt: req.Video.SRTPSalt,
		},
		Audio: &camera.PrepareStreamResponse{
			Port:     req.Audio.Port,
			SSRC:     randomSSRC(),
			SRTPKey:  req.Audio.SRTPKey,
			SRTPSalt: req.Audio.SRTPSalt,
		},
	}

	return resp, sess, nil
}

// prepareProxy sends plain RTP to the relay from reserved local ports
func (s *source) prepareProxy(req *camera.PrepareRequest) (*camera.PrepareResponse, *session, error) {
	network := "udp4"
	if req.AddressVersion == camera.AddressVersionIPv6 {
		network = "udp6"
	}

	videoPort, err := udp.GetFreePair(network)
	if err != nil {
		return nil, nil, err
	}
	audioPort, err := udp.GetFreePair(network)
	if err != nil {
		return nil, nil, err
	}

	sess := &session{
		address:       req.TargetAddress,
		videoPort:     req.Video.ProxyRTPPort,
		videoRTCPPort: req.Video.ProxyRTCPPort,
		localPort:     uint16(videoPort),
		ssrc:          randomSSRC(),
		payloadType:   proxyVideoPayloadType,
	}

	resp := &camera.PrepareResponse{
		Address:        req.TargetAddress,
		AddressVersion: req.AddressVersion,
		Video: &camera.PrepareStreamResponse{
			SSRC:                sess.ssrc,
			ProxyPayloadType:    proxyVideoPayloadType,
			ProxyServerAddress:  req.TargetAddress,
			ProxyServerRTPPort:  uint16(videoPort),
			ProxyServerRTCPPort: uint16(videoPort + 1),
		},
		Audio: &camera.PrepareStreamResponse{
			Port:                req.Audio.Port,
			SSRC:                randomSSRC(),
			ProxyPayloadType:    proxyAudioPayloadType,
			ProxyServerAddress:  req.TargetAddress,
			ProxyServerRTPPort:  uint16(audioPort),
			ProxyServerRTCPPort: uint16(audioPort + 1),
		},
	}

	return resp, sess, nil
}

func (s *source) HandleStreamRequest(req *camera.StreamRequest) {
	id, err := uuid.FromBytes(req.SessionID)
	if err != nil {
		s.log.Warn().Err(err).Msgf("[homekit] %s without session uuid", req.Type)
		return
	}

	switch req.Type {
	case camera.StreamRequestStart:
		s.mu.Lock()
		sess := s.pending[id]
		delete(s.pending, id)
		if sess != nil {
			sess.connID = req.ConnectionID
			s.ongoing[id] = sess
		}
		s.mu.Unlock()

		if sess == nil {
			s.log.Warn().Str("session", id.String()).Msg("[homekit] start unknown session")
			return
		}

		if !s.proxy && req.Video != nil && req.Video.HasRTP {
			sess.payloadType = req.Video.PayloadType
		}

		args := s.videoArgs(sess, req.Video)
		cmdline := args.String()

		s.log.Debug().Str("session", id.String()).Msgf("[homekit] run %s", cmdline)

		process, err := s.exec(cmdline)
		if err != nil {
			s.log.Error().Err(err).Str("session", id.String()).Msg("[homekit] start ffmpeg")
			s.mu.Lock()
			delete(s.ongoing, id)
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		if s.ongoing[id] == sess {
			sess.process = process
			process = nil
		}
		s.mu.Unlock()

		// stopped while starting
		if process != nil {
			_ = process.Close()
		}

	case camera.StreamRequestStop:
		s.mu.Lock()
		sess := s.ongoing[id]
		delete(s.ongoing, id)
		delete(s.pending, id)
		s.mu.Unlock()

		if sess != nil {
			s.stop(sess)
		}

	case camera.StreamRequestReconfigure:
		if v := req.Video; v != nil {
			s.log.Debug().Str("session", id.String()).Msgf(
				"[homekit] reconfigure %dx%d@%d bitrate=%d", v.Width, v.Height, v.FPS, v.MaxBitrate,
			)
		}
	}
}

func (s *source) HandleCloseConnection(connID string) {
	var sessions []*session

	s.mu.Lock()
	for id, sess := range s.ongoing {
		if sess.connID == connID {
			sessions = append(sessions, sess)
			delete(s.ongoing, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		s.stop(sess)
	}
}

func (s *source) stop(sess *session) {
	s.mu.Lock()
	process := sess.process
	sess.process = nil
	s.mu.Unlock()

	if process != nil {
		_ = process.Close()
	}

	s.log.Debug().Str("session", sess.id.String()).Msg("[homekit] stop")
}

func (s *source) start(cmdline string) (io.Closer, error) {
	cmd, err := shell.NewCommand(context.Background(), cmdline)
	if err != nil {
		return nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, err
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			s.log.Debug().Err(err).Msg("[homekit] ffmpeg exit")
		}
	}()

	return cmd, nil
}

func (s *source) videoArgs(sess *session, video *camera.VideoInfo) *ffmpeg.Args {
	args := &ffmpeg.Args{
		Bin:    s.cfg.Bin,
		Global: s.cfg.Global,
		Input:  s.cfg.Input,
	}

	codec := "-an -c:v libx264 -pix_fmt yuv420p -preset ultrafast -tune zerolatency"
	mtu := defaultMTU

	if video != nil {
		if video.HasParams {
			codec += " -profile:v " + profileName(video.Profile) + " -level:v " + levelName(video.Level)
		}
		if video.HasAttributes {
			args.AddFilter("scale=" + strconv.Itoa(int(video.Width)) + ":" + strconv.Itoa(int(video.Height)))
			codec += " -r " + strconv.Itoa(int(video.FPS))
		}
		if video.MaxBitrate > 0 {
			bitrate := strconv.Itoa(int(video.MaxBitrate)) + "k"
			codec += " -b:v " + bitrate + " -maxrate " + bitrate + " -bufsize " + bitrate
		}
		if video.MTU > 0 {
			mtu = int(video.MTU)
		}
	}

	args.AddCodec(codec)

	out := &ffmpeg.RTP{
		Address:     sess.address,
		Port:        sess.videoPort,
		RTCPPort:    sess.videoRTCPPort,
		LocalPort:   sess.localPort,
		SSRC:        sess.ssrc,
		PayloadType: sess.payloadType,
		PacketSize:  mtu,
		Key:         sess.key,
		Salt:        sess.salt,
	}
	args.AddOutput(out.String())

	return args
}

func profileName(profile byte) string {
	switch profile {
	case camera.VideoCodecProfileMain:
		return "main"
	case camera.VideoCodecProfileHigh:
		return "high"
	}
	return "baseline"
}

func levelName(level byte) string {
	switch level {
	case camera.VideoCodecLevel32:
		return "3.2"
	case camera.VideoCodecLevel40:
		return "4.0"
	}
	return "3.1"
}

// localAddress returns the address used to reach the controller
func localAddress(target string, port uint16) (string, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(target, strconv.Itoa(int(port))))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// randomSSRC has a zero top byte so it fits ffmpeg signed ssrc option
func randomSSRC() uint32 {
	b := make([]byte, 4)
	_, _ = rand.Read(b[1:])
	return binary.BigEndian.Uint32(b)
}
