package aggregator

import (
	"github.com/google/uuid"

	"swarmctl/internal/ledger"
	"swarmctl/internal/notify"
)

// DefaultHistory is the default number of samples retained.
const DefaultHistory = 1024

// State is everything the controller accumulates between resets.
type State struct {
	Session string
	Window  *Window
	Pending []notify.Reading
	Ledger  *ledger.Accountant
}

// NewState returns an empty state opening a new session.
func NewState(history int) *State {
	if history <= 0 {
		history = DefaultHistory
	}
	return &State{
		Session: uuid.NewString(),
		Window:  NewWindow(history),
		Ledger:  ledger.New(),
	}
}

// clear empties every collection and opens a new session.
func (s *State) clear() {
	s.Session = uuid.NewString()
	s.Window.Reset()
	s.Pending = nil
	s.Ledger.Reset()
}

func (s *State) update() notify.Update {
	readings := make([]notify.Reading, len(s.Pending))
	copy(readings, s.Pending)
	return notify.Update{RecentReadings: readings, Ledger: s.Ledger.Seconds()}
}
