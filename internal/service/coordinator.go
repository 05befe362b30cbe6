// Package service implements the reservation coordinator and the
// payment saga.  The coordinator is the single shared-mutation
// authority over slot-claim state: every claim and every release goes
// through it, and everything it exposes is safe for concurrent callers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/courtcaller/court-booking-engine/internal/model"
	"github.com/courtcaller/court-booking-engine/internal/repository"
	"github.com/courtcaller/court-booking-engine/internal/schedule"
)

// Policy carries the tunable reservation limits.  The defaults mirror
// the current business policy; none of the values imply more meaning
// than "current default".
type Policy struct {
	MaxSlotsPerBooking int           // per-request claim cap
	ReserveTTL         time.Duration // how long a RESERVED booking may await payment
	ClaimTimeout       time.Duration // bound on waiting behind an in-flight claim
	SweepInterval      time.Duration // expiry sweeper period
	AvailabilityTTL    time.Duration // redis cache lifetime for availability pages
}

// ReserveResult is returned to the caller on a successful reservation.
type ReserveResult struct {
	BookingID  uuid.UUID `json:"booking_id"`
	TotalCents uint32    `json:"total_price_cents"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Coordinator turns validated slot requests into durable bookings with
// all-or-nothing claim semantics, and owns release, expiry and
// availability reads over the claim state.
type Coordinator struct {
	branches BranchDirectory
	prices   PriceBook
	bookings BookingStore
	rdb      *redis.Client // availability cache; nil disables caching
	policy   Policy
	now      func() time.Time
}

// NewCoordinator wires a coordinator.  rdb may be nil, in which case
// availability reads always hit the store.
func NewCoordinator(branches BranchDirectory, prices PriceBook, bookings BookingStore, rdb *redis.Client, policy Policy) *Coordinator {
	if policy.MaxSlotsPerBooking <= 0 {
		policy.MaxSlotsPerBooking = 10
	}
	if policy.ReserveTTL <= 0 {
		policy.ReserveTTL = 15 * time.Minute
	}
	if policy.SweepInterval <= 0 {
		policy.SweepInterval = time.Minute
	}
	if policy.AvailabilityTTL <= 0 {
		policy.AvailabilityTTL = 30 * time.Second
	}
	return &Coordinator{
		branches: branches,
		prices:   prices,
		bookings: bookings,
		rdb:      rdb,
		policy:   policy,
		now:      time.Now,
	}
}

// Reserve claims every requested slot for the user as one atomic
// booking.  Validation errors (empty request, cap exceeded, duplicate
// or out-of-hours slots) are returned before anything is claimed.  A
// lost race returns *repository.SlotConflictError naming the first
// conflicting slot, with no partial claim left behind; conflicts are
// never retried here, re-attempting is the caller's decision.
func (c *Coordinator) Reserve(ctx context.Context, userID, branchID string, requests []schedule.SlotRequest) (*ReserveResult, error) {
	if len(requests) == 0 {
		return nil, ErrNoSlots
	}
	if len(requests) > c.policy.MaxSlotsPerBooking {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySlots, len(requests), c.policy.MaxSlotsPerBooking)
	}
	seen := make(map[string]struct{}, len(requests))
	for _, req := range requests {
		key := req.SlotDate + "_" + req.StartTime
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateSlot, req.SlotDate, req.StartTime)
		}
		seen[key] = struct{}{}
	}

	branch, err := c.branches.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if !branch.IsActive {
		return nil, ErrBranchClosed
	}
	prices, err := c.prices.GetByBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}

	slots, total, err := c.buildClaims(*branch, *prices, requests)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		ID:         uuid.New(),
		UserID:     userID,
		BranchID:   branchID,
		Status:     model.BookingReserved,
		TotalCents: total,
		ExpiresAt:  c.now().UTC().Add(c.policy.ReserveTTL),
		Slots:      slots,
	}

	// Bound the claim so a request blocked behind an in-flight
	// conflicting transaction fails fast instead of starving.
	claimCtx := ctx
	if c.policy.ClaimTimeout > 0 {
		var cancel context.CancelFunc
		claimCtx, cancel = context.WithTimeout(ctx, c.policy.ClaimTimeout)
		defer cancel()
	}
	if err := c.bookings.CreateReserved(claimCtx, booking); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// A claim we could not finish in time is a lost race.
			return nil, &repository.SlotConflictError{Slot: slots[0].Key()}
		}
		return nil, err
	}

	c.invalidateAvailability(ctx, booking)
	return &ReserveResult{BookingID: booking.ID, TotalCents: total, ExpiresAt: booking.ExpiresAt}, nil
}

// buildClaims validates every request against the branch schedule,
// prices it, and returns the claims sorted date-then-time so the store
// takes row locks in a fixed order regardless of request order.
func (c *Coordinator) buildClaims(branch model.Branch, prices model.PriceSchedule, requests []schedule.SlotRequest) ([]model.BookingSlot, uint32, error) {
	startDay, endDay, err := schedule.ParseOpenDay(branch.OpenDay)
	if err != nil {
		return nil, 0, err
	}
	open, err := schedule.ClockToHours(branch.OpenTime)
	if err != nil {
		return nil, 0, err
	}
	close, err := schedule.ClockToHours(branch.CloseTime)
	if err != nil {
		return nil, 0, err
	}

	slots := make([]model.BookingSlot, 0, len(requests))
	var total uint32
	for _, req := range requests {
		date, err := time.Parse(schedule.DateLayout, req.SlotDate)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad date %q", ErrSlotOutsideHours, req.SlotDate)
		}
		start, err := schedule.ClockToHours(req.StartTime)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad time %q", ErrSlotOutsideHours, req.StartTime)
		}
		ordinal := isoWeekday(date.Weekday())
		if ordinal < startDay || ordinal > endDay {
			return nil, 0, fmt.Errorf("%w: %s is outside %s", ErrSlotOutsideHours, req.SlotDate, branch.OpenDay)
		}
		if start < open || start+1 > close {
			return nil, 0, fmt.Errorf("%w: %s on %s", ErrSlotOutsideHours, req.StartTime, req.SlotDate)
		}
		// Slots are exactly one hour; the stored end is always derived
		// from the start, and a client-supplied end that disagrees is
		// rejected rather than silently rewritten.
		if req.EndTime != "" {
			endHour, err := schedule.ClockToHours(req.EndTime)
			if err != nil || math.Abs(endHour-(start+1)) > 1e-9 {
				return nil, 0, fmt.Errorf("%w: end %s does not follow start %s", ErrSlotOutsideHours, req.EndTime, req.StartTime)
			}
		}
		end := schedule.FormatClock(start+1) + ":00"
		rate := prices.RateFor(date)
		total += rate
		slots = append(slots, model.BookingSlot{
			BranchID:   branch.ID,
			SlotDate:   req.SlotDate,
			StartTime:  req.StartTime,
			EndTime:    end,
			PriceCents: rate,
		})
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].SlotDate != slots[j].SlotDate {
			return slots[i].SlotDate < slots[j].SlotDate
		}
		return slots[i].StartTime < slots[j].StartTime
	})
	return slots, total, nil
}

// isoWeekday maps Go's Sunday-first weekday onto 1=Monday..7=Sunday.
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// Booking returns a booking with its slots.
func (c *Coordinator) Booking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return c.bookings.GetByID(ctx, id)
}

// List returns one page of bookings and the total count.
func (c *Coordinator) List(ctx context.Context, page, pageSize int) ([]model.Booking, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return c.bookings.List(ctx, page, pageSize)
}

// Cancel releases a RESERVED booking on the user's request.  Releasing
// a booking that has already been released or expired is a no-op
// success; a confirmed booking cannot be cancelled here.
func (c *Coordinator) Cancel(ctx context.Context, id uuid.UUID) (model.BookingStatus, error) {
	status, err := c.release(ctx, id, model.BookingReleased)
	if err != nil {
		return "", err
	}
	if status == model.BookingConfirmed {
		return status, ErrAlreadyConfirmed
	}
	return status, nil
}

// release performs the compensating transition RESERVED -> to.  It is
// idempotent: duplicate release signals observe the terminal state and
// succeed without changing anything.  Returns the booking's status
// after the call.
func (c *Coordinator) release(ctx context.Context, id uuid.UUID, to model.BookingStatus) (model.BookingStatus, error) {
	moved, err := c.bookings.Transition(ctx, id, model.BookingReserved, to)
	if err != nil {
		return "", err
	}
	booking, err := c.bookings.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if moved {
		c.invalidateAvailability(ctx, booking)
		log.Printf("coordinator: booking %s released (%s)", id, to)
	}
	return booking.Status, nil
}

// RunExpirySweep periodically releases RESERVED bookings whose payment
// window has lapsed.  The conditional transition in the store makes
// each expiry happen exactly once even when a confirmation races the
// sweep.  Blocks until ctx is cancelled.
func (c *Coordinator) RunExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(c.policy.SweepInterval)
	defer ticker.Stop()

	log.Printf("coordinator: expiry sweeper started (every %s)", c.policy.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			log.Println("coordinator: expiry sweeper stopped")
			return
		case <-ticker.C:
			c.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single expiry pass.
func (c *Coordinator) SweepOnce(ctx context.Context) {
	ids, err := c.bookings.ExpiredReservations(ctx, c.now().UTC())
	if err != nil {
		log.Printf("coordinator: fetching expired reservations: %v", err)
		return
	}
	for _, id := range ids {
		if _, err := c.release(ctx, id, model.BookingExpired); err != nil {
			log.Printf("coordinator: expiring booking %s: %v", id, err)
		}
	}
	if len(ids) > 0 {
		log.Printf("coordinator: sweep released %d expired reservations", len(ids))
	}
}
