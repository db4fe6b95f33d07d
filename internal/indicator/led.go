package indicator

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LED is a single on/off light.
type LED interface {
	Set(on bool) error
}

// Pulser lights an LED for a while without blocking the caller. A pulse
// that starts while another is running extends it.
type Pulser struct {
	led    LED
	name   string
	logger *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewPulser wraps led.
func NewPulser(led LED, name string, logger *zap.Logger) *Pulser {
	return &Pulser{led: led, name: name, logger: logger}
}

// Pulse turns the LED on now and off after d.
func (p *Pulser) Pulse(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.set(true)
	p.timer = time.AfterFunc(d, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.gen == gen {
			p.set(false)
		}
	})
}

// Stop cancels a running pulse and turns the LED off.
func (p *Pulser) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
	p.set(false)
}

func (p *Pulser) set(on bool) {
	if err := p.led.Set(on); err != nil {
		p.logger.Warn("Failed to drive LED", zap.String("led", p.name), zap.Bool("on", on), zap.Error(err))
	}
}

// Blinker blinks the LED assigned to each source.
type Blinker struct {
	pool    *Pool
	pulsers []*Pulser
	blink   time.Duration
}

// NewBlinker returns a blinker over leds, one pool slot per LED.
func NewBlinker(leds []LED, blink time.Duration, logger *zap.Logger) *Blinker {
	pulsers := make([]*Pulser, len(leds))
	for i, led := range leds {
		pulsers[i] = NewPulser(led, "source-"+strconv.Itoa(i), logger)
	}
	return &Blinker{pool: NewPool(len(leds)), pulsers: pulsers, blink: blink}
}

// Identify blinks the LED of source.
func (b *Blinker) Identify(source string) {
	slot, ok := b.pool.Slot(source)
	if !ok {
		return
	}
	b.pulsers[slot].Pulse(b.blink)
}

// Pool returns the slot assignments.
func (b *Blinker) Pool() *Pool {
	return b.pool
}

// Stop turns every LED off.
func (b *Blinker) Stop() {
	for _, p := range b.pulsers {
		p.Stop()
	}
}
