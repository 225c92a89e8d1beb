// Package relay forwards RTP/RTCP between a media source and a HomeKit controller.
//
// A Relay owns three UDP sockets: an incoming RTP/RTCP pair that receives media
// from the source and one outgoing socket that talks to the controller.
// Forwarded packets carry the relay's fixed SSRC and the negotiated payload type.
package relay

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/transport/v3"
	"github.com/pion/transport/v3/stdnet"
	"github.com/rs/zerolog"
)

const DefaultBasePort = 10000

var (
	ErrClosed       = errors.New("relay: closed")
	ErrAlreadySetup = errors.New("relay: already setup")

	errNoNet = errors.New("relay: no network")
)

type Config struct {
	// Net is the socket factory, stdnet when nil
	Net transport.Net
	// Network is udp4 (default) or udp6
	Network string
	// BasePort is the first port of the search, DefaultBasePort when zero
	BasePort int

	// controller side
	OutgoingAddress string
	OutgoingPort    uint16
	OutgoingSSRC    uint32

	// Disabled relay binds its sockets but never reads from them
	Disabled bool

	Logger zerolog.Logger
}

type Relay struct {
	cfg  Config
	log  zerolog.Logger
	port int // next port to try

	rtpConn  transport.UDPConn
	rtcpConn transport.UDPConn
	outConn  transport.UDPConn

	mu         sync.Mutex
	closed     bool
	setup      bool
	outAddr    *net.UDPAddr
	serverAddr *net.UDPAddr // source RTCP

	incomingPT    uint8
	outgoingPT    uint8
	hasOutgoingPT bool
	incomingSSRC  uint32
	hasIncoming   bool

	wg sync.WaitGroup
}

func New(cfg Config) *Relay {
	if cfg.Network == "" {
		cfg.Network = "udp4"
	}
	if cfg.BasePort <= 0 || cfg.BasePort > maxPort {
		cfg.BasePort = DefaultBasePort
	}
	if cfg.Net == nil {
		if n, err := stdnet.NewNet(); err == nil {
			cfg.Net = n
		} else {
			cfg.Logger.Warn().Err(err).Msg("[relay] stdnet")
		}
	}

	return &Relay{
		cfg:  cfg,
		log:  cfg.Logger,
		port: cfg.BasePort,
	}
}

// Setup binds the incoming pair and then the outgoing socket.
// Receive loops start right after, unless the relay is disabled.
func (r *Relay) Setup(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.setup {
		r.mu.Unlock()
		return ErrAlreadySetup
	}
	r.setup = true
	r.mu.Unlock()

	if r.cfg.Net == nil {
		return errNoNet
	}

	outAddr := r.resolve(r.cfg.OutgoingAddress, r.cfg.OutgoingPort)

	rtpConn, rtcpConn, err := r.listenPair(ctx)
	if err != nil {
		return err
	}

	outConn, err := r.listenSingle(ctx)
	if err != nil {
		_ = rtpConn.Close()
		_ = rtcpConn.Close()
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = rtpConn.Close()
		_ = rtcpConn.Close()
		_ = outConn.Close()
		return ErrClosed
	}
	r.rtpConn, r.rtcpConn, r.outConn = rtpConn, rtcpConn, outConn
	r.outAddr = outAddr
	r.mu.Unlock()

	r.log.Debug().Msgf(
		"[relay] bound rtp=%d rtcp=%d out=%d target=%s disabled=%t",
		r.IncomingRTPPort(), r.IncomingRTCPPort(), r.OutgoingLocalPort(), outAddr, r.cfg.Disabled,
	)

	if r.cfg.Disabled {
		return nil
	}

	r.wg.Add(3)
	go r.serve(rtpConn, r.handleRTP)
	go r.serve(rtcpConn, r.handleRTCP)
	go r.serve(outConn, r.handleReply)

	return nil
}

// Close releases all bound sockets. It is safe to call more than once
// and before Setup has finished.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conns := []transport.UDPConn{r.rtpConn, r.rtcpConn, r.outConn}
	r.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		if conn != nil {
			if err := conn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	r.wg.Wait()

	return errors.Join(errs...)
}

func (r *Relay) IncomingRTPPort() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return localPort(r.rtpConn)
}

func (r *Relay) IncomingRTCPPort() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return localPort(r.rtcpConn)
}

func (r *Relay) OutgoingLocalPort() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return localPort(r.outConn)
}

func (r *Relay) OutgoingSSRC() uint32 {
	return r.cfg.OutgoingSSRC
}

// IncomingSSRC returns the source SSRC learned from the first packet.
func (r *Relay) IncomingSSRC() (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.incomingSSRC, r.hasIncoming
}

func (r *Relay) SetIncomingPayloadType(pt uint8) {
	r.mu.Lock()
	r.incomingPT = pt & 0x7F
	r.mu.Unlock()
}

func (r *Relay) SetOutgoingPayloadType(pt uint8) {
	r.mu.Lock()
	r.outgoingPT = pt & 0x7F
	r.hasOutgoingPT = true
	r.mu.Unlock()
}

// SetServer sets the media source endpoint. RTCP replies from the controller
// go to the RTCP port.
func (r *Relay) SetServer(address string, rtpPort, rtcpPort uint16) {
	addr := r.resolve(address, rtcpPort)

	r.mu.Lock()
	r.serverAddr = addr
	r.mu.Unlock()

	r.log.Debug().Msgf("[relay] server %s rtp=%d rtcp=%d", address, rtpPort, rtcpPort)
}

func (r *Relay) serve(conn transport.UDPConn, handle func(b []byte)) {
	defer r.wg.Done()

	b := make([]byte, 4096)
	for {
		n, _, err := conn.ReadFrom(b)
		if err != nil {
			return
		}
		handle(b[:n])
	}
}

func (r *Relay) handleRTP(b []byte) {
	r.mu.Lock()
	inPT, outPT := int(r.incomingPT), -1
	if r.hasOutgoingPT {
		outPT = int(r.outgoingPT)
	}
	known := r.hasIncoming
	r.mu.Unlock()

	if ssrc, ok := rewriteRTP(b, r.cfg.OutgoingSSRC, inPT, outPT); ok && !known {
		r.learn(ssrc)

		if r.log.Trace().Enabled() {
			var header rtp.Header
			if _, err := header.Unmarshal(b); err == nil {
				r.log.Trace().Msgf("[relay] first rtp ssrc=%08x seq=%d pt=%d", ssrc, header.SequenceNumber, header.PayloadType)
			}
		}
	}

	r.sendOut(b)
}

func (r *Relay) handleRTCP(b []byte) {
	b = walkRTCP(b, func(pt uint8, packet []byte) {
		if ssrc, ok := rewriteSenderReport(pt, packet, r.cfg.OutgoingSSRC); ok {
			r.learn(ssrc)
		}
	})

	if len(b) > 0 {
		r.sendOut(b)
	}
}

func (r *Relay) handleReply(b []byte) {
	ssrc, ok := r.IncomingSSRC()

	b = walkRTCP(b, func(pt uint8, packet []byte) {
		if ok {
			rewriteReceiverReport(pt, packet, ssrc)
		}
	})

	if len(b) > 0 {
		r.sendBack(b)
	}
}

func (r *Relay) learn(ssrc uint32) {
	r.mu.Lock()
	if !r.hasIncoming {
		r.incomingSSRC = ssrc
		r.hasIncoming = true
	}
	r.mu.Unlock()
}

func (r *Relay) sendOut(b []byte) {
	r.mu.Lock()
	addr := r.outAddr
	r.mu.Unlock()

	// drop until the destination is known
	if addr == nil {
		return
	}

	if _, err := r.outConn.WriteTo(b, addr); err != nil {
		r.log.Trace().Err(err).Msg("[relay] send out")
	}
}

func (r *Relay) sendBack(b []byte) {
	r.mu.Lock()
	addr := r.serverAddr
	r.mu.Unlock()

	if addr == nil {
		return
	}

	if _, err := r.outConn.WriteTo(b, addr); err != nil {
		r.log.Trace().Err(err).Msg("[relay] send back")
	}
}

func (r *Relay) resolve(address string, port uint16) *net.UDPAddr {
	if address == "" || port == 0 {
		return nil
	}

	if r.cfg.Net == nil {
		ip := net.ParseIP(address)
		if ip == nil {
			return nil
		}
		return &net.UDPAddr{IP: ip, Port: int(port)}
	}

	addr, err := r.cfg.Net.ResolveUDPAddr(r.cfg.Network, net.JoinHostPort(address, strconv.Itoa(int(port))))
	if err != nil {
		r.log.Warn().Err(err).Msgf("[relay] resolve %s", address)
		return nil
	}
	return addr
}

func localPort(conn transport.UDPConn) uint16 {
	if conn == nil {
		return 0
	}
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return uint16(addr.Port)
	}
	return 0
}
