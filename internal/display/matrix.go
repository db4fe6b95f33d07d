package display

import "sync"

// Matrix is an in-memory Driver. It backs hosts without a display and keeps
// the logical row buffer of hardware drivers.
type Matrix struct {
	mu   sync.RWMutex
	rows [Rows]byte
}

// NewMatrix returns a cleared matrix.
func NewMatrix() *Matrix {
	return &Matrix{}
}

// SetRow stores bits for row.
func (m *Matrix) SetRow(row int, bits byte) error {
	if err := checkRow(row); err != nil {
		return err
	}
	m.mu.Lock()
	m.rows[row] = bits
	m.mu.Unlock()
	return nil
}

// Clear zeroes all rows.
func (m *Matrix) Clear() error {
	m.mu.Lock()
	m.rows = [Rows]byte{}
	m.mu.Unlock()
	return nil
}

// Row returns the pattern last written to row.
func (m *Matrix) Row(row int) (byte, error) {
	if err := checkRow(row); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows[row], nil
}

// Snapshot returns a copy of every row.
func (m *Matrix) Snapshot() [Rows]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows
}
