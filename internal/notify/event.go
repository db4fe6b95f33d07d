// Package notify pushes aggregated state to the dashboard.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Kind is the type of an Event.
type Kind string

const (
	// KindUpdate carries the readings since the last reset and the ledger.
	KindUpdate Kind = "update"
	// KindReset tells dashboards to clear their charts.
	KindReset Kind = "reset"
)

// Reading is one accepted sensor value.
type Reading struct {
	Source string `json:"source"`
	Value  uint16 `json:"value"`
}

// Update is the payload of a KindUpdate event.
type Update struct {
	RecentReadings []Reading          `json:"recentReadings"`
	Ledger         map[string]float64 `json:"ledger"`
}

// Event is the envelope delivered to every sink.
type Event struct {
	Type    Kind   `json:"type"`
	Session string `json:"session"`
	Time    int64  `json:"time"`
	*Update
}

// NewUpdate builds an update event. readings and ledger must not be
// modified afterwards.
func NewUpdate(session string, at time.Time, readings []Reading, ledger map[string]float64) Event {
	if readings == nil {
		readings = []Reading{}
	}
	if ledger == nil {
		ledger = map[string]float64{}
	}
	return Event{
		Type:    KindUpdate,
		Session: session,
		Time:    at.UnixMilli(),
		Update:  &Update{RecentReadings: readings, Ledger: ledger},
	}
}

// NewReset builds a reset event opening session.
func NewReset(session string, at time.Time) Event {
	return Event{Type: KindReset, Session: session, Time: at.UnixMilli()}
}

// Marshal encodes ev as JSON.
func (ev Event) Marshal() ([]byte, error) {
	return json.Marshal(ev)
}

// Decode parses a JSON envelope.
func Decode(b []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(b, &ev)
	return ev, err
}

// Sink is a destination for events.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}
