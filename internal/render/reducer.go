// Package render reduces a stream of sensor samples into a left-scrolling
// bar graph, one display column per sample.
package render

import (
	"errors"
	"fmt"

	"swarmctl/internal/display"
)

const (
	// DefaultMaxData is the full-scale sample value.
	DefaultMaxData = 1024
	// DefaultWindow is the number of trailing samples averaged per column.
	DefaultWindow = 4
)

// ErrNoSamples is returned when there is nothing to average.
var ErrNoSamples = errors.New("no samples")

// Column is one rendered bar.
type Column struct {
	Index int
	Level uint
	Bits  byte
}

// Reducer owns the column cursor. It is not safe for concurrent use.
type Reducer struct {
	maxData uint
	window  int
	cursor  int
}

// NewReducer returns a reducer writing from column 0. Zero arguments select
// the defaults.
func NewReducer(maxData uint, window int) (*Reducer, error) {
	if maxData == 0 {
		maxData = DefaultMaxData
	}
	if window == 0 {
		window = DefaultWindow
	}
	if window < 0 {
		return nil, fmt.Errorf("window %d must be positive", window)
	}
	if maxData < display.Rows {
		return nil, fmt.Errorf("max data %d below %d rows", maxData, display.Rows)
	}
	return &Reducer{maxData: maxData, window: window}, nil
}

// Cursor returns the column the next Render writes.
func (r *Reducer) Cursor() int {
	return r.cursor
}

// Window returns the number of trailing samples averaged per column.
func (r *Reducer) Window() int {
	return r.window
}

// Next computes the bar for samples at the cursor and advances the cursor.
func (r *Reducer) Next(samples []uint16) (Column, error) {
	level, err := Mean(samples, r.window)
	if err != nil {
		return Column{}, err
	}
	col := Column{
		Index: r.cursor,
		Level: level,
		Bits:  Pattern(level, r.maxData, display.Rows),
	}
	r.cursor = (r.cursor + 1) % display.Cols
	return col, nil
}

// Render computes the next column and writes it to d. The cursor advances
// even when the write fails.
func (r *Reducer) Render(d display.Driver, samples []uint16) (Column, error) {
	col, err := r.Next(samples)
	if err != nil {
		return col, err
	}
	if err := d.SetRow(col.Index, col.Bits); err != nil {
		return col, err
	}
	return col, nil
}

// Mean returns floor(mean) of the last min(window, len(samples)) samples.
func Mean(samples []uint16, window int) (uint, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	if window > 0 && len(samples) > window {
		samples = samples[len(samples)-window:]
	}
	var sum uint
	for _, s := range samples {
		sum += uint(s)
	}
	return sum / uint(len(samples)), nil
}

// Pattern lights row r when level > r*(maxData/rows).
func Pattern(level, maxData uint, rows int) byte {
	step := maxData / uint(rows)
	var bits byte
	for row := 0; row < rows && row < 8; row++ {
		if level > uint(row)*step {
			bits |= 1 << row
		}
	}
	return bits
}
