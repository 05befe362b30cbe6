package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/courtcaller/court-booking-engine/internal/model"
)

// BookingStore is the persistence contract the coordinator and the
// payment saga mutate slot-claim state through.  Claim state is never
// touched by any other component.  The MySQL implementation lives in
// internal/repository; tests substitute an in-memory store.
type BookingStore interface {
	// CreateReserved persists the booking and claims every slot as one
	// atomic unit.  A conflicting claim fails the whole call with
	// *repository.SlotConflictError and persists nothing.
	CreateReserved(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Transition conditionally moves a booking between states,
	// releasing its claims when the target is RELEASED or EXPIRED.
	// Returns false when the booking was not in the from state.
	Transition(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (bool, error)
	Confirm(ctx context.Context, id uuid.UUID, paymentRef string) (bool, error)
	ExpiredReservations(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	List(ctx context.Context, page, pageSize int) ([]model.Booking, int, error)
	ClaimedKeys(ctx context.Context, branchID, fromDate, toDate string) (map[model.SlotKey]struct{}, error)
}

// BranchDirectory resolves branch schedule configuration.  Owned by
// branch management; consumed read-only.
type BranchDirectory interface {
	GetByID(ctx context.Context, branchID string) (*model.Branch, error)
}

// PriceBook resolves the weekday/weekend rates of a branch.
type PriceBook interface {
	GetByBranch(ctx context.Context, branchID string) (*model.PriceSchedule, error)
}

// PaymentStore persists payment attempts for the saga.
type PaymentStore interface {
	Create(ctx context.Context, attempt *model.PaymentAttempt) error
	SetToken(ctx context.Context, id uuid.UUID, token string) error
	SetSubmitted(ctx context.Context, id uuid.UUID, redirectURL string) error
	ActiveByBooking(ctx context.Context, bookingID uuid.UUID) (*model.PaymentAttempt, error)
	Resolve(ctx context.Context, id uuid.UUID, to model.PaymentStatus) (bool, error)
}

// PaymentGateway is the external tokenize/charge protocol.  Processing
// completes asynchronously; the gateway only hands back a hosted
// checkout URL on submission.
type PaymentGateway interface {
	IssueToken(ctx context.Context, bookingID string) (string, error)
	Submit(ctx context.Context, token string) (string, error)
}
