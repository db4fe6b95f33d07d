package indicator

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOLED is an LED on a GPIO character device line.
type GPIOLED struct {
	line *gpiocdev.Line
}

// OpenLED requests offset on chip as an output, initially off.
func OpenLED(chip string, offset int) (*GPIOLED, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request LED line %s:%d: %w", chip, offset, err)
	}
	return &GPIOLED{line: line}, nil
}

// Set implements LED.
func (l *GPIOLED) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return l.line.SetValue(v)
}

// Close turns the LED off and releases the line.
func (l *GPIOLED) Close() error {
	_ = l.line.SetValue(0)
	return l.line.Close()
}

// Button is an active-low push button with a pull-up.
type Button struct {
	line    *gpiocdev.Line
	presses chan time.Time
}

// OpenButton watches offset on chip for presses.
func OpenButton(chip string, offset int, debounce time.Duration) (*Button, error) {
	b := newButton()
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(b.handle),
	}
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}
	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request button line %s:%d: %w", chip, offset, err)
	}
	b.line = line
	return b, nil
}

func newButton() *Button {
	return &Button{presses: make(chan time.Time, 1)}
}

// Presses delivers one value per press. Presses arriving while one is still
// pending are merged into it.
func (b *Button) Presses() <-chan time.Time {
	return b.presses
}

// Close stops watching the line.
func (b *Button) Close() error {
	if b.line == nil {
		return nil
	}
	return b.line.Close()
}

func (b *Button) handle(evt gpiocdev.LineEvent) {
	if evt.Type == gpiocdev.LineEventFallingEdge {
		b.press(time.Now())
	}
}

func (b *Button) press(at time.Time) {
	select {
	case b.presses <- at:
	default:
	}
}
