package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/courtcaller/court-booking-engine/internal/model"
)

// PaymentRepo persists payment attempts.  An attempt is active while
// its status is non-terminal; at most one active attempt exists per
// booking at a time (the saga enforces this before creating one).
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// Create inserts a new payment attempt in its initial state.
func (r *PaymentRepo) Create(ctx context.Context, attempt *model.PaymentAttempt) error {
	const q = `
	INSERT INTO payment_attempts (id, booking_id, token, status)
	VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		attempt.ID.String(), attempt.BookingID.String(), attempt.Token, string(attempt.Status))
	if err != nil {
		return fmt.Errorf("insert payment attempt: %w", err)
	}
	return nil
}

// SetToken records the gateway token and advances the attempt to
// TOKEN_ISSUED.
func (r *PaymentRepo) SetToken(ctx context.Context, id uuid.UUID, token string) error {
	const q = `UPDATE payment_attempts SET token = ?, status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, token, string(model.PaymentTokenIssued), id.String())
	return err
}

// SetSubmitted records the redirect URL returned by the gateway and
// advances the attempt to SUBMITTED.
func (r *PaymentRepo) SetSubmitted(ctx context.Context, id uuid.UUID, redirectURL string) error {
	const q = `UPDATE payment_attempts SET redirect_url = ?, status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, redirectURL, string(model.PaymentSubmitted), id.String())
	return err
}

// ActiveByBooking returns the booking's non-terminal attempt, or
// ErrAttemptNotFound when every attempt has resolved.
func (r *PaymentRepo) ActiveByBooking(ctx context.Context, bookingID uuid.UUID) (*model.PaymentAttempt, error) {
	const q = `SELECT id, booking_id, token, redirect_url, status, created_at, updated_at
	           FROM payment_attempts
	           WHERE booking_id = ? AND status IN (?, ?, ?)
	           ORDER BY created_at DESC LIMIT 1`
	row := r.db.QueryRowContext(ctx, q, bookingID.String(),
		string(model.PaymentInitiated), string(model.PaymentTokenIssued), string(model.PaymentSubmitted))

	var a model.PaymentAttempt
	var id, owner string
	var redirect sql.NullString
	var status string
	err := row.Scan(&id, &owner, &a.Token, &redirect, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse attempt id %q: %w", id, err)
	}
	if a.BookingID, err = uuid.Parse(owner); err != nil {
		return nil, fmt.Errorf("parse attempt booking id %q: %w", owner, err)
	}
	if redirect.Valid {
		u := redirect.String
		a.RedirectURL = &u
	}
	a.Status = model.PaymentStatus(status)
	return &a, nil
}

// Resolve moves an attempt to a terminal status.  The update is
// conditional on the attempt still being non-terminal, so duplicate
// result deliveries resolve exactly once; false means the attempt had
// already resolved.
func (r *PaymentRepo) Resolve(ctx context.Context, id uuid.UUID, to model.PaymentStatus) (bool, error) {
	const q = `UPDATE payment_attempts SET status = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status IN (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, string(to), id.String(),
		string(model.PaymentInitiated), string(model.PaymentTokenIssued), string(model.PaymentSubmitted))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
