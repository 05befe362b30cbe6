package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtcaller/court-booking-engine/internal/model"
)

// PriceRepo exposes the per-branch weekday/weekend rates.  Pricing is
// maintained elsewhere; the booking engine reads the schedule once per
// reservation to compute the aggregate booking price.
type PriceRepo struct {
	db *sql.DB
}

// NewPriceRepo returns a new PriceRepo bound to the given database.
func NewPriceRepo(db *sql.DB) *PriceRepo { return &PriceRepo{db: db} }

// GetByBranch loads the price schedule for a branch.  When the branch
// has no schedule, ErrPriceNotFound is returned.
func (r *PriceRepo) GetByBranch(ctx context.Context, branchID string) (*model.PriceSchedule, error) {
	const q = `SELECT branch_id, weekday_cents, weekend_cents FROM prices WHERE branch_id = ?`
	var p model.PriceSchedule
	err := r.db.QueryRowContext(ctx, q, branchID).Scan(&p.BranchID, &p.WeekdayCents, &p.WeekendCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPriceNotFound
		}
		return nil, err
	}
	return &p, nil
}
