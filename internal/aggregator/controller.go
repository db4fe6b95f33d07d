// Package aggregator owns the controller state and runs the ingestion and
// reset pipelines against it.
package aggregator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"swarmctl/internal/display"
	"swarmctl/internal/notify"
	"swarmctl/internal/packet"
	"swarmctl/internal/render"
)

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(ev notify.Event) bool
}

// Broadcaster sends a datagram to every master.
type Broadcaster interface {
	Broadcast(payload []byte) error
}

// Identifier signals which source a packet came from.
type Identifier interface {
	Identify(source string)
}

// Indicator is lit for a while on every reset.
type Indicator interface {
	Pulse(d time.Duration)
}

// DefaultIndicatorDuration is how long the reset indicator stays lit.
const DefaultIndicatorDuration = 3 * time.Second

// Options configures a Controller. Only Display is required.
type Options struct {
	Display           display.Driver
	Reducer           *render.Reducer
	Publisher         Publisher
	Broadcaster       Broadcaster
	Identifier        Identifier
	Indicator         Indicator
	IndicatorDuration time.Duration
	History           int
	CreditOnReset     bool
	Clock             func() time.Time
	Logger            *zap.Logger
}

// Controller serializes packet handling and resets over one State.
type Controller struct {
	mu      sync.Mutex
	state   *State
	reducer *render.Reducer
	display display.Driver

	publisher     Publisher
	broadcaster   Broadcaster
	identifier    Identifier
	indicator     Indicator
	indicatorFor  time.Duration
	creditOnReset bool
	clock         func() time.Time
	logger        *zap.Logger
}

// NewController returns a controller with empty state.
func NewController(opts Options) (*Controller, error) {
	if opts.Display == nil {
		return nil, errors.New("aggregator: display is required")
	}
	c := &Controller{
		state:         NewState(opts.History),
		reducer:       opts.Reducer,
		display:       opts.Display,
		publisher:     opts.Publisher,
		broadcaster:   opts.Broadcaster,
		identifier:    opts.Identifier,
		indicator:     opts.Indicator,
		indicatorFor:  opts.IndicatorDuration,
		creditOnReset: opts.CreditOnReset,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}
	if c.reducer == nil {
		r, err := render.NewReducer(render.DefaultMaxData, render.DefaultWindow)
		if err != nil {
			return nil, err
		}
		c.reducer = r
	}
	if c.publisher == nil {
		c.publisher = nopPublisher{}
	}
	if c.broadcaster == nil {
		c.broadcaster = nopBroadcaster{}
	}
	if c.identifier == nil {
		c.identifier = nopIdentifier{}
	}
	if c.indicator == nil {
		c.indicator = nopIndicator{}
	}
	if c.indicatorFor <= 0 {
		c.indicatorFor = DefaultIndicatorDuration
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// HandleDatagram processes one datagram received from source. Datagrams
// that are not sensor reports return an error wrapping packet.ErrMalformed
// and change nothing. Display write failures are logged and tolerated,
// except row addressing errors which are returned after the packet has
// been fully processed.
func (c *Controller) HandleDatagram(source string, payload []byte) error {
	rep, err := packet.Decode(payload)
	if err != nil {
		return err
	}
	c.identifier.Identify(source)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	st := c.state
	st.Ledger.Touch(source)
	st.Window.Append(Sample{Value: rep.Value, At: now})
	st.Pending = append(st.Pending, notify.Reading{Source: source, Value: rep.Value})

	var result error
	col, err := c.reducer.Render(c.display, st.Window.Last(c.reducer.Window()))
	switch {
	case errors.Is(err, display.ErrOutOfRange):
		c.logger.Error("Reducer addressed an invalid row", zap.Int("column", col.Index), zap.Error(err))
		result = fmt.Errorf("render: %w", err)
	case err != nil:
		c.logger.Warn("Failed to write display column", zap.Int("column", col.Index), zap.Error(err))
	default:
		c.logger.Debug("Rendered column",
			zap.String("source", source),
			zap.Uint16("value", rep.Value),
			zap.Int("column", col.Index),
			zap.Uint("level", col.Level),
			zap.Uint8("bits", col.Bits),
		)
	}

	if h, ok := st.Ledger.Observe(source, now); ok {
		c.logger.Debug("Ownership handed off",
			zap.String("from", h.From),
			zap.String("to", h.To),
			zap.Duration("elapsed", h.Elapsed),
		)
	}

	upd := st.update()
	c.publisher.Publish(notify.NewUpdate(st.Session, now, upd.RecentReadings, upd.Ledger))
	return result
}

// Reset broadcasts the reset directive, lights the reset indicator and
// clears all state. With CreditOnReset the running interval is credited and
// published in a final update first. State is cleared even when the broadcast fails; the
// broadcast error is returned.
func (c *Controller) Reset() error {
	var result error
	if err := c.broadcaster.Broadcast(packet.ResetDirective()); err != nil {
		c.logger.Warn("Failed to broadcast reset directive", zap.Error(err))
		result = fmt.Errorf("broadcast reset: %w", err)
	}
	c.indicator.Pulse(c.indicatorFor)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	st := c.state
	if c.creditOnReset {
		// Dashboards see the credited interval before the ledger is wiped.
		st.Ledger.Flush(now)
		upd := st.update()
		c.publisher.Publish(notify.NewUpdate(st.Session, now, upd.RecentReadings, upd.Ledger))
	}
	c.logger.Info("Resetting controller state",
		zap.String("session", st.Session),
		zap.Int("samples", st.Window.Len()),
		zap.Int("pending", len(st.Pending)),
		zap.Any("ledger", st.Ledger.Seconds()),
	)
	st.clear()
	c.publisher.Publish(notify.NewReset(st.Session, now))
	return result
}

// Announce emits a reset event for the current session without touching
// the masters, so dashboards drop charts from a previous run.
func (c *Controller) Announce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publisher.Publish(notify.NewReset(c.state.Session, c.clock()))
}

// Shutdown logs the final ledger and blanks the display.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creditOnReset {
		c.state.Ledger.Flush(c.clock())
	}
	c.logger.Info("Final ledger",
		zap.String("session", c.state.Session),
		zap.Strings("sources", c.state.Ledger.Sources()),
		zap.Duration("total", c.state.Ledger.Total()),
		zap.Any("ledger", c.state.Ledger.Seconds()),
	)
	if err := c.display.Clear(); err != nil {
		return fmt.Errorf("clear display: %w", err)
	}
	return nil
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Session    string
	Owner      string
	OwnerSince time.Time
	HasOwner   bool
	Ledger     map[string]float64
	Pending    []notify.Reading
	Samples    []Sample
	Cursor     int
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state
	owner, since, ok := st.Ledger.Owner()
	upd := st.update()
	return Snapshot{
		Session:    st.Session,
		Owner:      owner,
		OwnerSince: since,
		HasOwner:   ok,
		Ledger:     upd.Ledger,
		Pending:    upd.RecentReadings,
		Samples:    st.Window.Samples(),
		Cursor:     c.reducer.Cursor(),
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(notify.Event) bool { return true }

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast([]byte) error { return nil }

type nopIdentifier struct{}

func (nopIdentifier) Identify(string) {}

type nopIndicator struct{}

func (nopIndicator) Pulse(time.Duration) {}
