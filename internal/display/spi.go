package display

import (
	"fmt"

	"github.com/fulr/spidev"
)

// SPIBus is a Linux spidev character device.
type SPIBus struct {
	dev *spidev.SPIDevice
}

// OpenSPI opens the spidev node at path, e.g. /dev/spidev0.0.
func OpenSPI(path string) (*SPIBus, error) {
	dev, err := spidev.NewSPIDevice(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &SPIBus{dev: dev}, nil
}

// Xfer sends tx and returns the bytes clocked in.
func (b *SPIBus) Xfer(tx []byte) ([]byte, error) {
	return b.dev.Xfer(tx)
}

// Close releases the device.
func (b *SPIBus) Close() error {
	b.dev.Close()
	return nil
}
