// Package ledger accounts active time per source.
//
// One source at a time owns the controller. Time is only credited when
// ownership moves to another source: the running interval of the current
// owner is not in the ledger until a hand-off, or until Flush is called.
package ledger

import (
	"sort"
	"time"
)

// Handoff describes an ownership change.
type Handoff struct {
	From    string
	To      string
	Elapsed time.Duration
}

// Accountant tracks the current owner and the completed intervals of every
// source. It is not safe for concurrent use.
type Accountant struct {
	owner   string
	owned   bool
	since   time.Time
	entries map[string]time.Duration
}

// New returns an empty accountant.
func New() *Accountant {
	return &Accountant{entries: make(map[string]time.Duration)}
}

// Touch returns the accumulated time of source, inserting a zero entry when
// the source is unknown.
func (a *Accountant) Touch(source string) time.Duration {
	d, ok := a.Elapsed(source)
	if !ok {
		a.entries[source] = 0
	}
	return d
}

// Observe records activity from source at now. A hand-off is reported when
// a different source owned the controller.
func (a *Accountant) Observe(source string, now time.Time) (Handoff, bool) {
	if !a.owned {
		a.owner, a.since, a.owned = source, now, true
		return Handoff{}, false
	}
	if a.owner == source {
		return Handoff{}, false
	}
	h := Handoff{From: a.owner, To: source, Elapsed: a.credit(now)}
	a.owner, a.since = source, now
	return h, true
}

// Flush credits the running interval of the current owner at now and
// restarts it. It returns the credited duration.
func (a *Accountant) Flush(now time.Time) time.Duration {
	if !a.owned {
		return 0
	}
	d := a.credit(now)
	a.since = now
	return d
}

// Owner returns the current owner and the start of its interval.
func (a *Accountant) Owner() (string, time.Time, bool) {
	return a.owner, a.since, a.owned
}

// Elapsed returns the accumulated time of source.
func (a *Accountant) Elapsed(source string) (time.Duration, bool) {
	d, ok := a.entries[source]
	return d, ok
}

// Seconds returns a copy of the ledger in seconds.
func (a *Accountant) Seconds() map[string]float64 {
	out := make(map[string]float64, len(a.entries))
	for src, d := range a.entries {
		out[src] = d.Seconds()
	}
	return out
}

// Sources returns the known sources in lexical order.
func (a *Accountant) Sources() []string {
	out := make([]string, 0, len(a.entries))
	for src := range a.entries {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// Total returns the sum of all entries.
func (a *Accountant) Total() time.Duration {
	var total time.Duration
	for _, d := range a.entries {
		total += d
	}
	return total
}

// Reset empties the ledger and clears the owner.
func (a *Accountant) Reset() {
	a.entries = make(map[string]time.Duration)
	a.owner, a.since, a.owned = "", time.Time{}, false
}

func (a *Accountant) credit(now time.Time) time.Duration {
	elapsed := now.Sub(a.since)
	if elapsed < 0 {
		elapsed = 0
	}
	a.entries[a.owner] = a.Touch(a.owner) + elapsed
	return elapsed
}
