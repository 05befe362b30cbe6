package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtcaller/court-booking-engine/internal/model"
)

// BranchRepo provides read access to branch schedule configuration.
// Branch records are owned by the branch-management service; the
// booking engine only ever reads them, so no mutation methods exist.
type BranchRepo struct {
	db *sql.DB
}

// NewBranchRepo returns a new BranchRepo bound to the given database.
func NewBranchRepo(db *sql.DB) *BranchRepo { return &BranchRepo{db: db} }

// GetByID loads a single branch.  The open/close clock columns are
// TIME values and scan as strings.  When no branch with the given ID
// exists, ErrBranchNotFound is returned.
func (r *BranchRepo) GetByID(ctx context.Context, branchID string) (*model.Branch, error) {
	const q = `SELECT id, name, open_day, open_time, close_time, is_active, created_at, updated_at
	           FROM branches WHERE id = ?`
	var b model.Branch
	err := r.db.QueryRowContext(ctx, q, branchID).Scan(
		&b.ID, &b.Name, &b.OpenDay, &b.OpenTime, &b.CloseTime,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}
	return &b, nil
}
