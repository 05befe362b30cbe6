package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus enumerates the states of a payment attempt as it
// moves through the gateway protocol: issue a token, submit it for
// processing, then wait for the out-of-band result.
type PaymentStatus string

const (
	PaymentInitiated   PaymentStatus = "INITIATED"
	PaymentTokenIssued PaymentStatus = "TOKEN_ISSUED"
	PaymentSubmitted   PaymentStatus = "SUBMITTED"
	PaymentSucceeded   PaymentStatus = "SUCCEEDED"
	PaymentFailed      PaymentStatus = "FAILED"
)

// PaymentAttempt records one pass through the payment gateway for a
// booking.  At most one attempt per booking is active (non-terminal)
// at a time.  The attempt holds a non-owning reference to its booking.
//
// Fields:
//  ID          – attempt identifier.
//  BookingID   – booking being paid for.
//  Token       – opaque token issued by the gateway.
//  RedirectURL – hosted checkout URL returned on submission.
//  Status      – see PaymentStatus.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type PaymentAttempt struct {
	ID          uuid.UUID     // payment_attempts.id
	BookingID   uuid.UUID     // payment_attempts.booking_id
	Token       string        // payment_attempts.token
	RedirectURL *string       // payment_attempts.redirect_url (nullable)
	Status      PaymentStatus // payment_attempts.status
	CreatedAt   time.Time     // payment_attempts.created_at
	UpdatedAt   time.Time     // payment_attempts.updated_at
}
