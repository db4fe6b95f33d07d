package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swarmctl/internal/packet"
)

func TestService_ReportReachesDashboard(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISPLAY_DRIVER", "memory")
	t.Setenv("SWARM_BROADCAST_ADDR", "127.0.0.1")
	t.Setenv("SERVER_PORT", "127.0.0.1:0")
	cfg, err := loadConfig()
	require.NoError(t, err)
	cfg.Swarm.Port = 0

	svc, err := newService(cfg, zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	defer func() {
		cancel()
		assert.NoError(t, svc.Stop())
	}()

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: svc.listener.Addr().Port})
	require.NoError(t, err)
	defer conn.Close()

	// garbage is ignored
	_, err = conn.Write([]byte{0x02, 0x00, 0x10, 0xFF})
	require.NoError(t, err)
	_, err = conn.Write(packet.Encode(512))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(svc.hub.Latest().RecentReadings) == 1
	}, 2*time.Second, 10*time.Millisecond)

	latest := svc.hub.Latest()
	assert.Equal(t, "127.0.0.1", latest.RecentReadings[0].Source)
	assert.Equal(t, uint16(512), latest.RecentReadings[0].Value)
	assert.Equal(t, svc.ctrl.Snapshot().Session, latest.Session)

	rec := httptest.NewRecorder()
	svc.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/latest", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value":512`)
}

func TestService_UnreachableRedisIsNotFatal(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISPLAY_DRIVER", "memory")
	t.Setenv("SWARM_BROADCAST_ADDR", "127.0.0.1")
	t.Setenv("SERVER_PORT", "127.0.0.1:0")
	t.Setenv("NOTIFY_BACKENDS", "redis")
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")
	cfg, err := loadConfig()
	require.NoError(t, err)
	cfg.Swarm.Port = 0

	svc, err := newService(cfg, zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	defer func() {
		cancel()
		assert.NoError(t, svc.Stop())
	}()

	require.NoError(t, svc.ctrl.HandleDatagram("10.0.0.5", packet.Encode(300)))
	assert.Len(t, svc.ctrl.Snapshot().Pending, 1)

	// announce and update both fail to publish without stopping anything
	require.Eventually(t, func() bool {
		return svc.dispatcher.Failed() >= 2
	}, 5*time.Second, 20*time.Millisecond)
}
