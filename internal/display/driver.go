// Package display drives an 8x8 addressable LED matrix.
//
// A Driver only writes bit patterns into rows. What a row means physically
// depends on how the matrix is mounted; the controller mounts it so that
// each chip row register lights one column of the strip chart.
package display

import (
	"errors"
	"fmt"
)

const (
	// Rows is the number of addressable rows.
	Rows = 8
	// Cols is the number of LEDs in a row.
	Cols = 8
)

// ErrOutOfRange is returned when a row index is outside 0..Rows-1.
var ErrOutOfRange = errors.New("row out of range")

// Driver is an 8-row binary matrix.
type Driver interface {
	// SetRow writes bits into row as-is.
	SetRow(row int, bits byte) error
	// Clear sets every row to zero.
	Clear() error
}

func checkRow(row int) error {
	if row < 0 || row >= Rows {
		return fmt.Errorf("%w: %d", ErrOutOfRange, row)
	}
	return nil
}

func clearRows(d Driver) error {
	for row := 0; row < Rows; row++ {
		if err := d.SetRow(row, 0); err != nil {
			return err
		}
	}
	return nil
}
