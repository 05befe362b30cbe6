package model

import "time"

// Branch represents a rentable facility with courts.  The booking
// engine treats branches as read-mostly configuration owned by the
// branch-management service: only the scheduling fields matter here.
//
// Fields:
//  ID        – external branch identifier (e.g. "B001").
//  Name      – display name of the branch.
//  OpenDay   – day range the branch operates, e.g. "Monday to Friday".
//  OpenTime  – daily opening clock time ("08:00:00").
//  CloseTime – daily closing clock time ("22:00:00").
//  IsActive  – whether the branch currently accepts bookings.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Branch struct {
	ID        string    // branches.id
	Name      string    // branches.name
	OpenDay   string    // branches.open_day
	OpenTime  string    // branches.open_time
	CloseTime string    // branches.close_time
	IsActive  bool      // branches.is_active
	CreatedAt time.Time // branches.created_at
	UpdatedAt time.Time // branches.updated_at
}

// PriceSchedule holds the two per-hour rates a branch charges.  The
// applicable rate for a slot depends only on whether its date falls on
// a weekend.
type PriceSchedule struct {
	BranchID     string // prices.branch_id
	WeekdayCents uint32 // prices.weekday_cents
	WeekendCents uint32 // prices.weekend_cents
}

// RateFor returns the hourly rate in cents for the given slot date.
func (p PriceSchedule) RateFor(date time.Time) uint32 {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return p.WeekendCents
	default:
		return p.WeekdayCents
	}
}
