package schedule

import (
	"errors"
	"time"
)

// ErrSelectionFull is returned by Toggle when adding a slot would
// exceed the configured maximum.  The set is left unchanged; callers
// surface this so the user knows why nothing happened.
var ErrSelectionFull = errors.New("schedule: selection limit reached")

// SlotRequest is the shape of one requested slot as sent to the
// reservation coordinator.
type SlotRequest struct {
	SlotDate  string `json:"slot_date"`  // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM:SS
	EndTime   string `json:"end_time"`   // HH:MM:SS
}

// selected is one picked calendar cell, identified by date and label.
type selected struct {
	date  string
	label string
}

// SelectionSet is the bounded, ordered set of slots a user has picked
// in one booking session.  It lives purely in session state and only
// shapes the request eventually sent to the coordinator; toggling has
// no network or persistence side effects.
type SelectionSet struct {
	max   int
	order []selected
}

// NewSelectionSet returns an empty set admitting at most max slots.
// The maximum is supplied per booking mode by the caller.
func NewSelectionSet(max int) *SelectionSet {
	return &SelectionSet{max: max}
}

// Toggle adds the slot identified by date and label, or removes it if
// it is already selected.  Removal is idempotent and never errors.
// Adding past capacity returns ErrSelectionFull with the set
// unchanged.  It reports whether the slot is selected afterwards.
func (s *SelectionSet) Toggle(date time.Time, label string) (bool, error) {
	key := selected{date: date.Format(DateLayout), label: label}
	for i, sel := range s.order {
		if sel == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return false, nil
		}
	}
	if len(s.order) >= s.max {
		return false, ErrSelectionFull
	}
	s.order = append(s.order, key)
	return true, nil
}

// Len returns the number of selected slots.
func (s *SelectionSet) Len() int { return len(s.order) }

// Requests converts the selection, in insertion order, into the slot
// requests the reservation coordinator accepts.
func (s *SelectionSet) Requests() ([]SlotRequest, error) {
	reqs := make([]SlotRequest, 0, len(s.order))
	for _, sel := range s.order {
		start, end, err := LabelBounds(sel.label)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, SlotRequest{SlotDate: sel.date, StartTime: start, EndTime: end})
	}
	return reqs, nil
}
