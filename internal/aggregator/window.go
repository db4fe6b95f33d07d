package aggregator

import "time"

// Sample is an accepted reading and its arrival time.
type Sample struct {
	Value uint16
	At    time.Time
}

// Window retains the most recent samples in arrival order.
type Window struct {
	buf   []Sample
	start int
	n     int
}

// NewWindow returns a window holding up to capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]Sample, capacity)}
}

// Append adds s, evicting the oldest sample when full.
func (w *Window) Append(s Sample) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = s
		w.n++
		return
	}
	w.buf[w.start] = s
	w.start = (w.start + 1) % len(w.buf)
}

// Len returns the number of retained samples.
func (w *Window) Len() int { return w.n }

// Last returns the values of the last k samples, oldest first.
func (w *Window) Last(k int) []uint16 {
	if k > w.n {
		k = w.n
	}
	out := make([]uint16, k)
	for i := 0; i < k; i++ {
		out[i] = w.at(w.n - k + i).Value
	}
	return out
}

// Samples returns every retained sample, oldest first.
func (w *Window) Samples() []Sample {
	out := make([]Sample, w.n)
	for i := range out {
		out[i] = w.at(i)
	}
	return out
}

// Reset drops every sample.
func (w *Window) Reset() {
	w.start, w.n = 0, 0
}

func (w *Window) at(i int) Sample {
	return w.buf[(w.start+i)%len(w.buf)]
}
