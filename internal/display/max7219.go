package display

import "fmt"

// MAX7219 register addresses.
const (
	regDigit0      byte = 0x01
	regDecodeMode  byte = 0x09
	regIntensity   byte = 0x0A
	regScanLimit   byte = 0x0B
	regShutdown    byte = 0x0C
	regDisplayTest byte = 0x0F
)

// MaxIntensity is the brightest MAX7219 intensity setting.
const MaxIntensity = 0x0F

// Transferer is a full-duplex serial bus.
type Transferer interface {
	Xfer(tx []byte) ([]byte, error)
}

// MAX7219 drives an 8x8 matrix behind a MAX7219 chip.
type MAX7219 struct {
	bus       Transferer
	intensity byte
	buf       Matrix
}

// NewMAX7219 returns a driver on bus. Init must succeed before use.
func NewMAX7219(bus Transferer, intensity byte) (*MAX7219, error) {
	if intensity > MaxIntensity {
		return nil, fmt.Errorf("intensity %d exceeds %d", intensity, MaxIntensity)
	}
	return &MAX7219{bus: bus, intensity: intensity}, nil
}

// Init runs the configuration handshake and blanks the display. It is safe
// to repeat.
func (d *MAX7219) Init() error {
	steps := []struct {
		name string
		reg  byte
		val  byte
	}{
		{"power on", regShutdown, 0x01},
		{"display test off", regDisplayTest, 0x00},
		{"scan limit", regScanLimit, Rows - 1},
		{"decode mode", regDecodeMode, 0x00},
		{"intensity", regIntensity, d.intensity},
	}
	for _, s := range steps {
		if err := d.write(s.reg, s.val); err != nil {
			return fmt.Errorf("max7219 %s: %w", s.name, err)
		}
	}
	return d.Clear()
}

// SetRow writes bits to the digit register of row.
func (d *MAX7219) SetRow(row int, bits byte) error {
	if err := checkRow(row); err != nil {
		return err
	}
	if err := d.write(regDigit0+byte(row), bits); err != nil {
		return fmt.Errorf("max7219 row %d: %w", row, err)
	}
	return d.buf.SetRow(row, bits)
}

// Clear blanks every row.
func (d *MAX7219) Clear() error {
	return clearRows(d)
}

// Shutdown blanks the display and puts the chip in shutdown mode.
func (d *MAX7219) Shutdown() error {
	if err := d.Clear(); err != nil {
		return err
	}
	if err := d.write(regShutdown, 0x00); err != nil {
		return fmt.Errorf("max7219 shutdown: %w", err)
	}
	return nil
}

// Row returns the pattern last written to row.
func (d *MAX7219) Row(row int) (byte, error) {
	return d.buf.Row(row)
}

func (d *MAX7219) write(reg, val byte) error {
	_, err := d.bus.Xfer([]byte{reg, val})
	return err
}
