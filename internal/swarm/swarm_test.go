package swarm

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swarmctl/internal/packet"
)

type datagram struct {
	source  string
	payload []byte
}

func TestListener_ServeDeliversInOrder(t *testing.T) {
	l, err := Listen("127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)

	got := make(chan datagram, 8)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- l.Serve(ctx, func(source string, payload []byte) {
			got <- datagram{source, payload}
		})
	}()

	conn, err := net.DialUDP("udp4", nil, l.Addr())
	require.NoError(t, err)
	defer conn.Close()

	for _, v := range []uint16{1, 2, 3} {
		_, err := conn.Write(packet.Encode(v))
		require.NoError(t, err)
	}
	for _, v := range []uint16{1, 2, 3} {
		select {
		case d := <-got:
			assert.Equal(t, "127.0.0.1", d.source)
			assert.Equal(t, packet.Encode(v), d.payload)
		case <-time.After(2 * time.Second):
			t.Fatal("datagram not delivered")
		}
	}

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestBroadcaster_SendsDirective(t *testing.T) {
	rx, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer rx.Close()

	b, err := NewBroadcaster("127.0.0.1", rx.LocalAddr().(*net.UDPAddr).Port)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Broadcast(packet.ResetDirective()))

	require.NoError(t, rx.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 16)
	n, _, err := rx.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x00}, buf[:n])
}

func TestNewBroadcaster_BadHost(t *testing.T) {
	_, err := NewBroadcaster("not a host", 2910)
	assert.Error(t, err)
}
