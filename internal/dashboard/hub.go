// Package dashboard relays controller events to dashboard browsers over
// websockets and serves the latest aggregated state.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"swarmctl/internal/notify"
)

// Hub holds the connected dashboard clients and the latest update of the
// current session.
type Hub struct {
	// latest is the last update of session; nil right after a reset.
	latest   *notify.Update
	latestAt int64
	session  string
	// previous is the session closed by the last reset. Updates still
	// tagged with it are stale.
	previous string
	latestMu sync.RWMutex

	// clients keeps track of connected websocket clients.
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex

	// broadcast delivers encoded events to the websocket writer.
	broadcast chan []byte

	writeWait time.Duration
	logger    *zap.Logger
}

// NewHub returns a hub buffering up to queue events for its clients.
func NewHub(queue int, logger *zap.Logger) *Hub {
	if queue <= 0 {
		queue = notify.DefaultQueue
	}
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, queue),
		writeWait: 5 * time.Second,
		logger:    logger,
	}
}

// Name implements notify.Sink.
func (h *Hub) Name() string { return "dashboard" }

// Send implements notify.Sink, feeding the hub in-process.
func (h *Hub) Send(ctx context.Context, ev notify.Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return h.Ingest(payload)
}

// Ingest records an encoded event and forwards it to every client. Stale
// updates are dropped.
func (h *Hub) Ingest(payload []byte) error {
	ev, err := notify.Decode(payload)
	if err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	h.latestMu.Lock()
	switch ev.Type {
	case notify.KindReset:
		if ev.Session != h.session {
			h.previous = h.session
		}
		h.session, h.latest, h.latestAt = ev.Session, nil, ev.Time
	case notify.KindUpdate:
		if ev.Session != "" && ev.Session == h.previous {
			h.latestMu.Unlock()
			h.logger.Debug("Dropping update from a reset session", zap.String("session", ev.Session))
			return nil
		}
		h.session, h.latest, h.latestAt = ev.Session, ev.Update, ev.Time
	default:
		h.latestMu.Unlock()
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	h.latestMu.Unlock()

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Dashboard broadcast queue full, dropping event", zap.String("type", string(ev.Type)))
	}
	return nil
}

// Latest returns the last update of the current session as an update
// event. It is empty after a reset.
func (h *Hub) Latest() notify.Event {
	h.latestMu.RLock()
	defer h.latestMu.RUnlock()

	ev := notify.Event{Type: notify.KindUpdate, Session: h.session, Time: h.latestAt}
	if h.latest != nil {
		ev.Update = h.latest
	} else {
		ev.Update = &notify.Update{RecentReadings: []notify.Reading{}, Ledger: map[string]float64{}}
	}
	return ev
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}
