// Package indicator drives the status LEDs and the reset button.
package indicator

import "sync"

// NextSlot returns the slot for id given the existing assignments and a
// pool of capacity slots. A known id keeps its slot; a new id takes the
// next slot in round-robin order, sharing slots once the pool is exhausted.
func NextSlot(assigned map[string]int, capacity int, id string) (int, bool) {
	if slot, ok := assigned[id]; ok {
		return slot, true
	}
	if capacity <= 0 {
		return 0, false
	}
	return len(assigned) % capacity, true
}

// Pool remembers the slot given to every source.
type Pool struct {
	mu       sync.Mutex
	capacity int
	assigned map[string]int
}

// NewPool returns a pool of capacity slots.
func NewPool(capacity int) *Pool {
	return &Pool{capacity: capacity, assigned: make(map[string]int)}
}

// Slot returns the slot of id, assigning one on first use. It reports false
// for an empty pool.
func (p *Pool) Slot(id string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot, ok := NextSlot(p.assigned, p.capacity, id)
	if ok {
		p.assigned[id] = slot
	}
	return slot, ok
}

// Assignments returns a copy of the current assignments.
func (p *Pool) Assignments() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.assigned))
	for id, slot := range p.assigned {
		out[id] = slot
	}
	return out
}
