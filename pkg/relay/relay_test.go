package relay

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/transport/v3"
	"github.com/pion/transport/v3/stdnet"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errBind = errors.New("bind: address already in use")

// failNet refuses to bind the ports selected by fail and records every attempt.
type failNet struct {
	transport.Net

	fail  func(port int) bool
	gate  chan struct{}
	mu    sync.Mutex
	tried []int
}

func newFailNet(t *testing.T, fail func(port int) bool) *failNet {
	n, err := stdnet.NewNet()
	require.Nil(t, err)
	return &failNet{Net: n, fail: fail}
}

func (n *failNet) ListenUDP(network string, laddr *net.UDPAddr) (transport.UDPConn, error) {
	if n.gate != nil {
		<-n.gate
	}

	n.mu.Lock()
	n.tried = append(n.tried, laddr.Port)
	n.mu.Unlock()

	if n.fail != nil && n.fail(laddr.Port) {
		return nil, errBind
	}
	return n.Net.ListenUDP(network, laddr)
}

func (n *failNet) attempts() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.tried...)
}

func randomBase() int {
	return 20000 + rand.Intn(20000)
}

func listenLocal(t *testing.T) *net.UDPConn {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.Nil(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func localAddr(conn *net.UDPConn) *net.UDPAddr {
	return conn.LocalAddr().(*net.UDPAddr)
}

func loopback(port uint16) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(port)}
}

func readPacket(t *testing.T, conn *net.UDPConn) []byte {
	b := make([]byte, 2048)
	require.Nil(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFrom(b)
	require.Nil(t, err)
	return b[:n]
}

func TestRelayForward(t *testing.T) {
	controller := listenLocal(t)
	source := listenLocal(t)

	r := New(Config{
		BasePort:        randomBase(),
		OutgoingAddress: "127.0.0.1",
		OutgoingPort:    uint16(localAddr(controller).Port),
		OutgoingSSRC:    0xCAFE0001,
		Logger:          zerolog.Nop(),
	})
	require.Nil(t, r.Setup(context.Background()))
	defer r.Close()

	require.Equal(t, r.IncomingRTPPort()+1, r.IncomingRTCPPort())
	require.NotEqual(t, r.IncomingRTPPort(), r.OutgoingLocalPort())
	require.NotEqual(t, r.IncomingRTCPPort(), r.OutgoingLocalPort())

	r.SetIncomingPayloadType(99)
	r.SetOutgoingPayloadType(110)
	r.SetServer("127.0.0.1", uint16(localAddr(source).Port), uint16(localAddr(source).Port))

	// rtp from source to controller
	_, err := source.WriteTo(marshalRTP(t, 99, true, 0x11112222), loopback(r.IncomingRTPPort()))
	require.Nil(t, err)

	pkt := unmarshalRTP(t, readPacket(t, controller))
	require.Equal(t, uint32(0xCAFE0001), pkt.SSRC)
	require.Equal(t, uint8(110), pkt.PayloadType)
	require.True(t, pkt.Marker)

	ssrc, ok := r.IncomingSSRC()
	require.True(t, ok)
	require.Equal(t, uint32(0x11112222), ssrc)

	// rtcp from source to controller
	sr, err := (&rtcp.SenderReport{SSRC: 0x11112222, PacketCount: 1}).Marshal()
	require.Nil(t, err)
	_, err = source.WriteTo(sr, loopback(r.IncomingRTCPPort()))
	require.Nil(t, err)

	packets, err := rtcp.Unmarshal(readPacket(t, controller))
	require.Nil(t, err)
	require.Equal(t, uint32(0xCAFE0001), packets[0].(*rtcp.SenderReport).SSRC)

	// rtcp reply from controller back to source
	rr, err := (&rtcp.ReceiverReport{SSRC: 0x0C0C0C0C, Reports: []rtcp.ReceptionReport{{SSRC: 0xCAFE0001}}}).Marshal()
	require.Nil(t, err)
	_, err = controller.WriteTo(rr, loopback(r.OutgoingLocalPort()))
	require.Nil(t, err)

	packets, err = rtcp.Unmarshal(readPacket(t, source))
	require.Nil(t, err)
	report := packets[0].(*rtcp.ReceiverReport)
	require.Equal(t, uint32(0x0C0C0C0C), report.SSRC)
	require.Equal(t, uint32(0x11112222), report.Reports[0].SSRC)
}

func TestRelayShortPacket(t *testing.T) {
	controller := listenLocal(t)
	source := listenLocal(t)

	r := New(Config{
		BasePort:        randomBase(),
		OutgoingAddress: "127.0.0.1",
		OutgoingPort:    uint16(localAddr(controller).Port),
		OutgoingSSRC:    1,
	})
	require.Nil(t, r.Setup(context.Background()))
	defer r.Close()

	_, err := source.WriteTo([]byte{1, 2, 3}, loopback(r.IncomingRTPPort()))
	require.Nil(t, err)
	require.Equal(t, []byte{1, 2, 3}, readPacket(t, controller))

	_, ok := r.IncomingSSRC()
	require.False(t, ok)
}

func TestRelayDisabled(t *testing.T) {
	controller := listenLocal(t)
	source := listenLocal(t)

	r := New(Config{
		BasePort:        randomBase(),
		OutgoingAddress: "127.0.0.1",
		OutgoingPort:    uint16(localAddr(controller).Port),
		Disabled:        true,
	})
	require.Nil(t, r.Setup(context.Background()))
	defer r.Close()

	require.NotZero(t, r.IncomingRTPPort())

	_, err := source.WriteTo(marshalRTP(t, 99, false, 1), loopback(r.IncomingRTPPort()))
	require.Nil(t, err)

	require.Nil(t, controller.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = controller.ReadFrom(make([]byte, 2048))
	require.NotNil(t, err)
}

func TestRelayPortRetry(t *testing.T) {
	base := randomBase()
	n := newFailNet(t, func(port int) bool {
		return port == base || port == base+1
	})

	r := New(Config{Net: n, BasePort: base})
	require.Nil(t, r.Setup(context.Background()))
	defer r.Close()

	require.Equal(t, []int{base, base + 1, base + 1, base + 2}, n.attempts()[:4])
	require.GreaterOrEqual(t, int(r.IncomingRTPPort()), base+2)
	require.Equal(t, r.IncomingRTPPort()+1, r.IncomingRTCPPort())
	require.Greater(t, r.OutgoingLocalPort(), r.IncomingRTCPPort())
}

func TestRelayNoPorts(t *testing.T) {
	n := newFailNet(t, func(int) bool { return true })

	r := New(Config{Net: n, BasePort: 65530})
	require.ErrorIs(t, r.Setup(context.Background()), ErrNoPorts)

	// one full cycle of 65530..65534
	require.Len(t, n.attempts(), 10)
	require.Nil(t, r.Close())
}

func TestRelayContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(Config{BasePort: randomBase()})
	require.ErrorIs(t, r.Setup(ctx), context.Canceled)
}

func TestRelayCloseDuringSetup(t *testing.T) {
	n := newFailNet(t, nil)
	n.gate = make(chan struct{})

	r := New(Config{Net: n, BasePort: randomBase()})

	done := make(chan error, 1)
	go func() {
		done <- r.Setup(context.Background())
	}()

	require.Nil(t, r.Close())
	close(n.gate)

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "setup not finished")
	}

	require.Zero(t, r.IncomingRTPPort())
	require.Zero(t, r.OutgoingLocalPort())
}

func TestRelayClose(t *testing.T) {
	r := New(Config{BasePort: randomBase()})
	require.Nil(t, r.Setup(context.Background()))

	port := r.IncomingRTPPort()
	require.Nil(t, r.Close())
	require.Nil(t, r.Close())

	require.ErrorIs(t, r.Setup(context.Background()), ErrClosed)

	// port is free again
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(port)})
	require.Nil(t, err)
	_ = conn.Close()
}
