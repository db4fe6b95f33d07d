package swarm

import (
	"fmt"
	"net"
	"strconv"
)

// Broadcaster sends directives to every master on the subnet.
type Broadcaster struct {
	conn *net.UDPConn
	dst  *net.UDPAddr
}

// NewBroadcaster returns a broadcaster sending to host:port. Go enables
// SO_BROADCAST on UDP sockets, so host may be a broadcast address.
func NewBroadcaster(host string, port int) (*Broadcaster, error) {
	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("open broadcast socket: %w", err)
	}
	return &Broadcaster{conn: conn, dst: dst}, nil
}

// Broadcast sends payload once. Delivery is not confirmed.
func (b *Broadcaster) Broadcast(payload []byte) error {
	if _, err := b.conn.WriteToUDP(payload, b.dst); err != nil {
		return fmt.Errorf("send to %s: %w", b.dst, err)
	}
	return nil
}

// Close releases the socket.
func (b *Broadcaster) Close() error {
	return b.conn.Close()
}
