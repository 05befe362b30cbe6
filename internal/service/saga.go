package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/courtcaller/court-booking-engine/internal/model"
	"github.com/courtcaller/court-booking-engine/internal/queue"
	"github.com/courtcaller/court-booking-engine/internal/repository"
)

// PaymentSaga drives a RESERVED booking to CONFIRMED or compensates by
// releasing it.  The synchronous part is token issue and submission;
// the actual processing result arrives out-of-band (gateway callback
// or the payment.result queue) and is applied through Resolve.
type PaymentSaga struct {
	coord    *Coordinator
	payments PaymentStore
	gateway  PaymentGateway
	// publish sends the confirmation event; nil disables publishing.
	// A publish failure never fails the confirmation itself.
	publish func(ctx context.Context, event queue.BookingConfirmedEvent) error
}

// NewPaymentSaga wires a saga.  Pass queue.PublishBookingConfirmed as
// publish in production; tests pass a capture function or nil.
func NewPaymentSaga(coord *Coordinator, payments PaymentStore, gateway PaymentGateway, publish func(context.Context, queue.BookingConfirmedEvent) error) *PaymentSaga {
	return &PaymentSaga{coord: coord, payments: payments, gateway: gateway, publish: publish}
}

// Start begins a payment for a RESERVED booking: issue a token, submit
// it, hand back the hosted checkout URL.  Either gateway failure
// compensates immediately by releasing the booking's slots; nothing is
// retried.  At most one attempt per booking is in flight.
func (s *PaymentSaga) Start(ctx context.Context, bookingID uuid.UUID) (string, error) {
	booking, err := s.coord.Booking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if booking.Status != model.BookingReserved {
		return "", fmt.Errorf("%w: booking %s is %s", ErrNotReserved, bookingID, booking.Status)
	}
	if _, err := s.payments.ActiveByBooking(ctx, bookingID); err == nil {
		return "", ErrPaymentInFlight
	} else if !errors.Is(err, repository.ErrAttemptNotFound) {
		return "", err
	}

	attempt := &model.PaymentAttempt{
		ID:        uuid.New(),
		BookingID: bookingID,
		Status:    model.PaymentInitiated,
	}
	if err := s.payments.Create(ctx, attempt); err != nil {
		return "", err
	}

	token, err := s.gateway.IssueToken(ctx, bookingID.String())
	if err != nil {
		s.compensate(ctx, attempt.ID, bookingID)
		return "", fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	if err := s.payments.SetToken(ctx, attempt.ID, token); err != nil {
		s.compensate(ctx, attempt.ID, bookingID)
		return "", err
	}

	redirectURL, err := s.gateway.Submit(ctx, token)
	if err != nil {
		s.compensate(ctx, attempt.ID, bookingID)
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if err := s.payments.SetSubmitted(ctx, attempt.ID, redirectURL); err != nil {
		s.compensate(ctx, attempt.ID, bookingID)
		return "", err
	}
	return redirectURL, nil
}

// compensate marks the attempt failed and returns the booking's slots
// to the pool.  Both halves are idempotent, so a duplicate failure
// signal cannot release twice.
func (s *PaymentSaga) compensate(ctx context.Context, attemptID, bookingID uuid.UUID) {
	if _, err := s.payments.Resolve(ctx, attemptID, model.PaymentFailed); err != nil {
		log.Printf("saga: marking attempt %s failed: %v", attemptID, err)
	}
	if _, err := s.coord.release(ctx, bookingID, model.BookingReleased); err != nil {
		log.Printf("saga: releasing booking %s: %v", bookingID, err)
	}
}

// Resolve applies an out-of-band payment result.  Duplicate or late
// results are absorbed: once the attempt has resolved, or the
// reservation has already been swept, Resolve reports the booking's
// current state without changing anything.
func (s *PaymentSaga) Resolve(ctx context.Context, bookingID uuid.UUID, succeeded bool, reference string) (model.BookingStatus, error) {
	attempt, err := s.payments.ActiveByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrAttemptNotFound) {
			// Already resolved; report where the booking ended up.
			booking, err := s.coord.Booking(ctx, bookingID)
			if err != nil {
				return "", err
			}
			return booking.Status, nil
		}
		return "", err
	}

	target := model.PaymentFailed
	if succeeded {
		target = model.PaymentSucceeded
	}
	moved, err := s.payments.Resolve(ctx, attempt.ID, target)
	if err != nil {
		return "", err
	}
	if !moved {
		booking, err := s.coord.Booking(ctx, bookingID)
		if err != nil {
			return "", err
		}
		return booking.Status, nil
	}

	if !succeeded {
		return s.coord.release(ctx, bookingID, model.BookingReleased)
	}

	confirmed, err := s.coord.bookings.Confirm(ctx, bookingID, reference)
	if err != nil {
		return "", err
	}
	booking, err := s.coord.Booking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if !confirmed {
		// The sweep won the race; the compensation already released
		// the slots and the late confirmation changes nothing.
		log.Printf("saga: late confirmation for booking %s ignored (status=%s)", bookingID, booking.Status)
		return booking.Status, nil
	}

	if s.publish != nil {
		event := queue.BookingConfirmedEvent{
			BookingID:   booking.ID.String(),
			UserID:      booking.UserID,
			BranchID:    booking.BranchID,
			TotalCents:  booking.TotalCents,
			PaymentRef:  reference,
			ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
		}
		for _, slot := range booking.Slots {
			event.Slots = append(event.Slots, queue.SlotPayload{
				SlotDate:  slot.SlotDate,
				StartTime: slot.StartTime,
				EndTime:   slot.EndTime,
			})
		}
		if err := s.publish(ctx, event); err != nil {
			log.Printf("saga: publishing confirmation for %s: %v", bookingID, err)
		}
	}
	return booking.Status, nil
}
