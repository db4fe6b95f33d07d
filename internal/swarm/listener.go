// Package swarm is the UDP transport between the controller and the
// sensor masters.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// MaxDatagram is the receive buffer size. Longer datagrams are truncated,
// which makes them malformed anyway.
const MaxDatagram = 1024

// Handler processes one datagram. It is called serially from the receive
// loop.
type Handler func(source string, payload []byte)

// Listener owns the UDP socket masters report to.
type Listener struct {
	conn   *net.UDPConn
	logger *zap.Logger
}

// Listen binds addr, e.g. ":2910".
func Listen(addr string, logger *zap.Logger) (*Listener, error) {
	laddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{conn: conn, logger: logger}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Serve reads datagrams until ctx is done or the socket is closed, calling
// h for each one before reading the next.
func (l *Listener) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()

	l.logger.Info("Listening for masters", zap.String("addr", l.conn.LocalAddr().String()))
	buf := make([]byte, MaxDatagram)
	for {
		n, from, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			l.logger.Warn("UDP read failed", zap.Error(err))
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		h(from.IP.String(), payload)
	}
}

// Close releases the socket. Closing after Serve has stopped is a no-op.
func (l *Listener) Close() error {
	if err := l.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
