package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingStatus enumerates the lifecycle states of a booking.  A
// booking starts PENDING while the reservation request is being
// processed, becomes RESERVED once every requested slot has been
// claimed atomically, and ends in exactly one terminal state.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingReserved  BookingStatus = "RESERVED"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingReleased  BookingStatus = "RELEASED"
	// BookingExpired marks a reservation released by the background
	// sweep rather than by an explicit cancellation or payment
	// failure.  Functionally identical to RELEASED; kept separate so
	// operators can tell the two apart.
	BookingExpired BookingStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == BookingConfirmed || s == BookingReleased || s == BookingExpired
}

// SlotKey identifies one bookable hour at a branch.  It is the unit
// of mutual exclusion: at most one booking may ever hold a given key.
type SlotKey struct {
	BranchID string `json:"branch_id"`
	Date     string `json:"slot_date"`  // YYYY-MM-DD
	Start    string `json:"start_time"` // HH:MM:SS
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.BranchID, k.Date, k.Start)
}

// BookingSlot is one reserved hour belonging to a booking.  Rows live
// in slot_claims; the unique key on (branch_id, slot_date, start_time)
// is what enforces first-committer-wins across concurrent reservations.
//
// Fields:
//  ID         – primary key identifier.
//  BookingID  – owning booking.
//  BranchID   – branch the slot belongs to.
//  SlotDate   – calendar date of the slot (YYYY-MM-DD).
//  StartTime  – slot start clock time (HH:MM:SS).
//  EndTime    – slot end clock time, always one hour after start.
//  PriceCents – rate charged for this slot at reservation time.
//  CreatedAt  – when the claim was committed.
type BookingSlot struct {
	ID         uint64    // slot_claims.id
	BookingID  uuid.UUID // slot_claims.booking_id
	BranchID   string    // slot_claims.branch_id
	SlotDate   string    // slot_claims.slot_date
	StartTime  string    // slot_claims.start_time
	EndTime    string    // slot_claims.end_time
	PriceCents uint32    // slot_claims.price_cents
	CreatedAt  time.Time // slot_claims.created_at
}

// Key returns the mutual-exclusion key of the slot.
func (s BookingSlot) Key() SlotKey {
	return SlotKey{BranchID: s.BranchID, Date: s.SlotDate, Start: s.StartTime}
}

// Booking aggregates the slots a user reserved in one atomic request
// together with the aggregate price and lifecycle state.  The slot
// list is owned exclusively by the booking; claims are deleted when
// the booking is released or expired.
//
// Fields:
//  ID         – booking identifier (UUID, assigned at reservation).
//  UserID     – user the booking belongs to.
//  BranchID   – branch all slots of the booking belong to.
//  Status     – lifecycle state, see BookingStatus.
//  TotalCents – sum of the per-slot rates.
//  PaymentRef – reference of the successful payment, if any.
//  ExpiresAt  – deadline after which an unconfirmed reservation is
//               swept to EXPIRED.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Booking struct {
	ID         uuid.UUID     // bookings.id
	UserID     string        // bookings.user_id
	BranchID   string        // bookings.branch_id
	Status     BookingStatus // bookings.status
	TotalCents uint32        // bookings.total_cents
	PaymentRef *string       // bookings.payment_ref (nullable)
	ExpiresAt  time.Time     // bookings.expires_at
	CreatedAt  time.Time     // bookings.created_at
	UpdatedAt  time.Time     // bookings.updated_at
	Slots      []BookingSlot // owned slot claims, date-then-time order
}
