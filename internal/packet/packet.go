// Package packet implements the fixed-format datagrams exchanged between the
// controller and the sensor masters on the shared UDP port.
package packet

import (
	"errors"
	"fmt"
)

const (
	// Port is the UDP port masters report on and listen to for directives.
	Port = 2910
	// BroadcastAddr is the address reset directives are sent to.
	BroadcastAddr = "255.255.255.255"

	// ReportSize is the length of a sensor report datagram.
	ReportSize = 4
	// ReportTag is the first byte of a sensor report.
	ReportTag byte = 0x01
	// Terminator is the last byte of a sensor report.
	Terminator byte = 0xFF
)

// ErrMalformed is returned for datagrams that are not sensor reports.
var ErrMalformed = errors.New("malformed packet")

var resetDirective = [4]byte{0xFF, 0xFF, 0x00, 0x00}

// Report is a decoded sensor report.
type Report struct {
	Value uint16
}

// Decode parses a sensor report: [0x01, hi, lo, 0xFF].
func Decode(b []byte) (Report, error) {
	if len(b) != ReportSize {
		return Report{}, fmt.Errorf("%w: length %d", ErrMalformed, len(b))
	}
	if b[0] != ReportTag || b[3] != Terminator {
		return Report{}, fmt.Errorf("%w: framing % x", ErrMalformed, b)
	}
	return Report{Value: uint16(b[1])<<8 | uint16(b[2])}, nil
}

// Encode builds the datagram a master sends for value.
func Encode(value uint16) []byte {
	return []byte{ReportTag, byte(value >> 8), byte(value), Terminator}
}

// ResetDirective returns a fresh copy of the reset broadcast payload.
func ResetDirective() []byte {
	b := resetDirective
	return b[:]
}
