package service

import "errors"

// Request-level validation errors.  These are correctable by the user
// and are reported synchronously; nothing is claimed when they occur.
var (
	// ErrNoSlots rejects an empty reservation request.
	ErrNoSlots = errors.New("no slots requested")
	// ErrTooManySlots rejects a request over the configured per-booking cap.
	ErrTooManySlots = errors.New("too many slots requested")
	// ErrDuplicateSlot rejects a request naming the same slot twice.
	ErrDuplicateSlot = errors.New("duplicate slot in request")
	// ErrSlotOutsideHours rejects a slot outside the branch's open days or hours.
	ErrSlotOutsideHours = errors.New("slot outside branch operating hours")
	// ErrBranchClosed rejects reservations against an inactive branch.
	ErrBranchClosed = errors.New("branch is not accepting bookings")
)

// Payment saga errors.
var (
	// ErrNotReserved means the booking is not in the RESERVED state, so
	// no payment can start against it.
	ErrNotReserved = errors.New("booking is not reserved")
	// ErrPaymentInFlight means another attempt for the booking has not
	// resolved yet.
	ErrPaymentInFlight = errors.New("payment attempt already in flight")
	// ErrTokenIssue wraps a gateway failure while issuing the token.
	// The booking's slots have been released.
	ErrTokenIssue = errors.New("payment token could not be issued")
	// ErrSubmission wraps a gateway failure while submitting the token.
	// The booking's slots have been released.
	ErrSubmission = errors.New("payment could not be submitted")
	// ErrAlreadyConfirmed rejects cancelling a confirmed booking.
	ErrAlreadyConfirmed = errors.New("booking already confirmed")
)
