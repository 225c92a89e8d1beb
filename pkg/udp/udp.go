package udp

import (
	"errors"
	"net"
	"strconv"
)

var ErrNoPair = errors.New("udp: no free port pair")

// GetFreePort returns a free UDP port that can be used for listening
func GetFreePort(network string) (int, error) {
	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).Port, nil
}

// GetFreePair returns an even port where this port and the next one are free,
// the way RTP and RTCP ports are allocated.
func GetFreePair(network string) (int, error) {
	for i := 0; i < 16; i++ {
		port, err := GetFreePort(network)
		if err != nil {
			return 0, err
		}

		port &^= 1
		if port > 0 && IsPortAvailable(network, port) && IsPortAvailable(network, port+1) {
			return port, nil
		}
	}

	return 0, ErrNoPair
}

// IsPortAvailable checks if a UDP port is available for binding
func IsPortAvailable(network string, port int) bool {
	addr, err := net.ResolveUDPAddr(network, ":"+strconv.Itoa(port))
	if err != nil {
		return false
	}

	conn, err := net.ListenUDP(network, addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
