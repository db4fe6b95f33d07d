package notify

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultQueue is the default number of events buffered by a Dispatcher.
const DefaultQueue = 100

// Dispatcher delivers events to sinks on a background goroutine. Publish
// never blocks: events that do not fit in the queue are dropped.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Event
	timeout time.Duration
	logger  *zap.Logger
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher returns a dispatcher fanning out to sinks.
func NewDispatcher(size int, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = DefaultQueue
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Event, size),
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Publish enqueues ev. It reports false when ev was dropped.
func (d *Dispatcher) Publish(ev Event) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("Notification queue full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.Uint64("dropped", n),
		)
		return false
	}
}

// Run delivers queued events until ctx is done. Events still queued at
// that point are discarded.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

// Dropped returns the number of events rejected by Publish.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Failed returns the number of failed sink deliveries.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := s.Send(sctx, ev)
		cancel()
		if err != nil {
			d.failed.Add(1)
			d.logger.Warn("Failed to deliver notification",
				zap.String("sink", s.Name()),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}
