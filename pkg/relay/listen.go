package relay

import (
	"context"
	"errors"
	"net"

	"github.com/pion/transport/v3"
)

const (
	maxPairPort = 65534
	maxPort     = 65535
)

var ErrNoPorts = errors.New("relay: no free udp ports")

// listenPair binds RTP on the current port and RTCP on the next one.
// When either half fails both are closed and the search moves one port up,
// wrapping to the base port after maxPairPort. One full cycle without
// success returns ErrNoPorts.
func (r *Relay) listenPair(ctx context.Context) (rtpConn, rtcpConn transport.UDPConn, err error) {
	for n := searchSize(r.cfg.BasePort, maxPairPort); n > 0; n-- {
		if err = ctx.Err(); err != nil {
			return nil, nil, err
		}

		port := r.port

		var err1, err2 error
		rtpConn, err1 = r.listen(port)
		rtcpConn, err2 = r.listen(port + 1)
		if err1 == nil && err2 == nil {
			r.port = port + 2
			if r.port > maxPort {
				r.port = r.cfg.BasePort
			}
			return rtpConn, rtcpConn, nil
		}

		if err1 == nil {
			_ = rtpConn.Close()
		}
		if err2 == nil {
			_ = rtcpConn.Close()
		}

		r.log.Trace().Msgf("[relay] pair %d/%d busy", port, port+1)
		r.port = nextPort(port, r.cfg.BasePort, maxPairPort)
	}

	return nil, nil, ErrNoPorts
}

func (r *Relay) listenSingle(ctx context.Context) (transport.UDPConn, error) {
	for n := searchSize(r.cfg.BasePort, maxPort); n > 0; n-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		port := r.port
		if conn, err := r.listen(port); err == nil {
			r.port = nextPort(port, r.cfg.BasePort, maxPort)
			return conn, nil
		}

		r.port = nextPort(port, r.cfg.BasePort, maxPort)
	}

	return nil, ErrNoPorts
}

func (r *Relay) listen(port int) (transport.UDPConn, error) {
	if port > maxPort {
		return nil, ErrNoPorts
	}
	return r.cfg.Net.ListenUDP(r.cfg.Network, &net.UDPAddr{Port: port})
}

func nextPort(port, base, top int) int {
	if port >= top {
		return base
	}
	return port + 1
}

func searchSize(base, top int) int {
	if base > top {
		return 1
	}
	return top - base + 1
}
