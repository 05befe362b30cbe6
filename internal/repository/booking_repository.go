package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courtcaller/court-booking-engine/internal/model"
)

// BookingRepo provides persistence for bookings and the slot claims
// they own.  Slot claims live in the slot_claims table whose unique
// key on (branch_id, slot_date, start_time) is the durable arbiter of
// slot ownership: the first transaction to commit a claim wins, every
// later insert of the same key fails with a duplicate-entry error.
// All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// isDuplicateEntry reports whether err is a MySQL 1062 unique key
// violation.
func isDuplicateEntry(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

// CreateReserved inserts the booking header and every slot claim as
// one transaction.  Claims must already be sorted date-then-time by
// the caller so concurrent multi-slot requests take row locks in a
// fixed order.  If any claim collides with an existing one the whole
// transaction rolls back and a *SlotConflictError naming that slot is
// returned; no partial claim is ever left behind.
func (r *BookingRepo) CreateReserved(ctx context.Context, booking *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const header = `
	INSERT INTO bookings (id, user_id, branch_id, status, total_cents, expires_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, header,
		booking.ID.String(), booking.UserID, booking.BranchID,
		string(booking.Status), booking.TotalCents, booking.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert booking header: %w", err)
	}

	const claim = `
	INSERT INTO slot_claims (booking_id, branch_id, slot_date, start_time, end_time, price_cents)
	VALUES (?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, claim)
	if err != nil {
		return fmt.Errorf("prepare claim statement: %w", err)
	}
	defer stmt.Close()

	for _, slot := range booking.Slots {
		_, err := stmt.ExecContext(ctx,
			booking.ID.String(), slot.BranchID, slot.SlotDate,
			slot.StartTime, slot.EndTime, slot.PriceCents,
		)
		if err != nil {
			if isDuplicateEntry(err) {
				return &SlotConflictError{Slot: slot.Key()}
			}
			return fmt.Errorf("insert slot claim %s: %w", slot.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	return nil
}

// scanBooking reads one bookings row from the given scanner.
func scanBooking(scan func(dest ...interface{}) error) (*model.Booking, error) {
	var b model.Booking
	var id string
	var paymentRef sql.NullString
	if err := scan(&id, &b.UserID, &b.BranchID, (*string)(&b.Status),
		&b.TotalCents, &paymentRef, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse booking id %q: %w", id, err)
	}
	b.ID = parsed
	if paymentRef.Valid {
		ref := paymentRef.String
		b.PaymentRef = &ref
	}
	return &b, nil
}

const bookingColumns = `id, user_id, branch_id, status, total_cents, payment_ref, expires_at, created_at, updated_at`

// GetByID loads a booking and its slot claims.  Returns
// ErrBookingNotFound when no booking with the given ID exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	row := r.db.QueryRowContext(ctx, q, id.String())
	b, err := scanBooking(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	slots, err := r.slotsForBookings(ctx, []uuid.UUID{b.ID})
	if err != nil {
		return nil, err
	}
	b.Slots = slots[b.ID]
	return b, nil
}

// slotsForBookings loads the claims of the given bookings, grouped by
// booking and ordered date-then-time.
func (r *BookingRepo) slotsForBookings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]model.BookingSlot, error) {
	out := make(map[uuid.UUID][]model.BookingSlot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT id, booking_id, branch_id, slot_date, start_time, end_time, price_cents, created_at
	          FROM slot_claims WHERE booking_id IN (`
	args := make([]interface{}, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id.String())
	}
	query += `) ORDER BY slot_date, start_time`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.BookingSlot
		var bookingID string
		var slotDate time.Time
		if err := rows.Scan(&s.ID, &bookingID, &s.BranchID, &slotDate,
			&s.StartTime, &s.EndTime, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(bookingID)
		if err != nil {
			return nil, fmt.Errorf("parse claim booking id %q: %w", bookingID, err)
		}
		s.BookingID = parsed
		s.SlotDate = slotDate.UTC().Format("2006-01-02")
		out[parsed] = append(out[parsed], s)
	}
	return out, rows.Err()
}

// Transition moves a booking from one status to another and, when the
// target is a released state, deletes its slot claims in the same
// transaction so the slots return to the available pool.  The update
// is conditional on the current status: when the booking is no longer
// in the from state nothing changes and false is returned, which makes
// release and expiry idempotent against duplicate signals.
func (r *BookingRepo) Transition(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		string(to), id.String(), string(from),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	if to == model.BookingReleased || to == model.BookingExpired {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM slot_claims WHERE booking_id = ?`, id.String()); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Confirm transitions a RESERVED booking to CONFIRMED and records the
// payment reference.  Returns false when the booking was not RESERVED
// anymore (already confirmed, released or expired).
func (r *BookingRepo) Confirm(ctx context.Context, id uuid.UUID, paymentRef string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_ref = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = ?`,
		string(model.BookingConfirmed), paymentRef, id.String(), string(model.BookingReserved),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ExpiredReservations returns the IDs of RESERVED bookings whose
// expiry deadline has passed.  The result is capped so a single sweep
// never processes an unbounded batch.
func (r *BookingRepo) ExpiredReservations(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	const q = `SELECT id FROM bookings WHERE status = ? AND expires_at < ? LIMIT 100`
	rows, err := r.db.QueryContext(ctx, q, string(model.BookingReserved), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse booking id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns one page of bookings, newest first, together with the
// total row count for pagination.
func (r *BookingRepo) List(ctx context.Context, page, pageSize int) ([]model.Booking, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&total); err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bookings []model.Booking
	var ids []uuid.UUID
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, *b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	slots, err := r.slotsForBookings(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range bookings {
		bookings[i].Slots = slots[bookings[i].ID]
	}
	return bookings, total, nil
}

// ClaimedKeys returns the set of claimed (date, start) pairs for a
// branch between two dates inclusive.  Claims belong exclusively to
// RESERVED or CONFIRMED bookings because released bookings delete
// their claims, so no status filter is needed.
func (r *BookingRepo) ClaimedKeys(ctx context.Context, branchID, fromDate, toDate string) (map[model.SlotKey]struct{}, error) {
	const q = `SELECT branch_id, slot_date, start_time FROM slot_claims
	           WHERE branch_id = ? AND slot_date BETWEEN ? AND ?`
	rows, err := r.db.QueryContext(ctx, q, branchID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	claimed := make(map[model.SlotKey]struct{})
	for rows.Next() {
		var key model.SlotKey
		var slotDate time.Time
		if err := rows.Scan(&key.BranchID, &slotDate, &key.Start); err != nil {
			return nil, err
		}
		key.Date = slotDate.UTC().Format("2006-01-02")
		claimed[key] = struct{}{}
	}
	return claimed, rows.Err()
}
