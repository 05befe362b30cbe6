// Package repository defines error values that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as services and handlers to distinguish between different
// failure scenarios without string matching on driver errors.
package repository

import (
	"errors"
	"fmt"

	"github.com/courtcaller/court-booking-engine/internal/model"
)

// ErrBranchNotFound is returned when no branch exists for the
// requested identifier.
var ErrBranchNotFound = errors.New("branch not found")

// ErrBookingNotFound is returned when a booking lookup matches no row.
var ErrBookingNotFound = errors.New("booking not found")

// ErrPriceNotFound is returned when a branch has no price schedule.
var ErrPriceNotFound = errors.New("price schedule not found")

// ErrAttemptNotFound is returned when a booking has no active payment
// attempt.
var ErrAttemptNotFound = errors.New("payment attempt not found")

// SlotConflictError reports that a reservation attempt lost the race
// for a slot: some other booking already holds it.  The attempt as a
// whole has failed and nothing was persisted.
type SlotConflictError struct {
	Slot model.SlotKey // first slot found taken
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot already claimed: %s", e.Slot)
}
