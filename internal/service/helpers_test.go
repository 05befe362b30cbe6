package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courtcaller/court-booking-engine/internal/model"
	"github.com/courtcaller/court-booking-engine/internal/repository"
)

// memStore is an in-memory BookingStore with the same atomicity
// guarantees as the MySQL implementation: claims commit all-or-nothing
// under one lock, and transitions are conditional.
type memStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*model.Booking
	claims   map[model.SlotKey]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		bookings: make(map[uuid.UUID]*model.Booking),
		claims:   make(map[model.SlotKey]uuid.UUID),
	}
}

func (m *memStore) CreateReserved(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, slot := range booking.Slots {
		if _, taken := m.claims[slot.Key()]; taken {
			return &repository.SlotConflictError{Slot: slot.Key()}
		}
	}
	copied := *booking
	copied.Slots = append([]model.BookingSlot(nil), booking.Slots...)
	m.bookings[booking.ID] = &copied
	for _, slot := range booking.Slots {
		m.claims[slot.Key()] = booking.ID
	}
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	copied := *b
	copied.Slots = append([]model.BookingSlot(nil), b.Slots...)
	return &copied, nil
}

func (m *memStore) Transition(ctx context.Context, id uuid.UUID, from, to model.BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	if b.Status != from {
		return false, nil
	}
	b.Status = to
	if to == model.BookingReleased || to == model.BookingExpired {
		for _, slot := range b.Slots {
			delete(m.claims, slot.Key())
		}
	}
	return true, nil
}

func (m *memStore) Confirm(ctx context.Context, id uuid.UUID, paymentRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	if b.Status != model.BookingReserved {
		return false, nil
	}
	b.Status = model.BookingConfirmed
	ref := paymentRef
	b.PaymentRef = &ref
	return true, nil
}

func (m *memStore) ExpiredReservations(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, b := range m.bookings {
		if b.Status == model.BookingReserved && b.ExpiresAt.Before(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) List(ctx context.Context, page, pageSize int) ([]model.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		out = append(out, *b)
	}
	total := len(out)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *memStore) ClaimedKeys(ctx context.Context, branchID, fromDate, toDate string) (map[model.SlotKey]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claimed := make(map[model.SlotKey]struct{})
	for key := range m.claims {
		if key.BranchID == branchID && key.Date >= fromDate && key.Date <= toDate {
			claimed[key] = struct{}{}
		}
	}
	return claimed, nil
}

// blockingStore blocks inside CreateReserved until the context
// expires, simulating a claim stuck behind a conflicting in-flight
// transaction.
type blockingStore struct {
	*memStore
}

func (b *blockingStore) CreateReserved(ctx context.Context, booking *model.Booking) error {
	<-ctx.Done()
	return ctx.Err()
}

// stubBranches serves a fixed branch.
type stubBranches struct {
	branch model.Branch
	err    error
}

func (s *stubBranches) GetByID(ctx context.Context, branchID string) (*model.Branch, error) {
	if s.err != nil {
		return nil, s.err
	}
	b := s.branch
	b.ID = branchID
	return &b, nil
}

// stubPrices serves a fixed price schedule.
type stubPrices struct {
	schedule model.PriceSchedule
	err      error
}

func (s *stubPrices) GetByBranch(ctx context.Context, branchID string) (*model.PriceSchedule, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := s.schedule
	p.BranchID = branchID
	return &p, nil
}

// memPayments is an in-memory PaymentStore.
type memPayments struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.PaymentAttempt
}

func newMemPayments() *memPayments {
	return &memPayments{attempts: make(map[uuid.UUID]*model.PaymentAttempt)}
}

func (m *memPayments) Create(ctx context.Context, attempt *model.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *attempt
	m.attempts[attempt.ID] = &copied
	return nil
}

func (m *memPayments) SetToken(ctx context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return repository.ErrAttemptNotFound
	}
	a.Token = token
	a.Status = model.PaymentTokenIssued
	return nil
}

func (m *memPayments) SetSubmitted(ctx context.Context, id uuid.UUID, redirectURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return repository.ErrAttemptNotFound
	}
	url := redirectURL
	a.RedirectURL = &url
	a.Status = model.PaymentSubmitted
	return nil
}

func (m *memPayments) ActiveByBooking(ctx context.Context, bookingID uuid.UUID) (*model.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.BookingID == bookingID &&
			a.Status != model.PaymentSucceeded && a.Status != model.PaymentFailed {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrAttemptNotFound
}

func (m *memPayments) Resolve(ctx context.Context, id uuid.UUID, to model.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return false, repository.ErrAttemptNotFound
	}
	if a.Status == model.PaymentSucceeded || a.Status == model.PaymentFailed {
		return false, nil
	}
	a.Status = to
	return true, nil
}

// fakeGateway scripts the gateway's responses.
type fakeGateway struct {
	tokenErr  error
	submitErr error
}

func (g *fakeGateway) IssueToken(ctx context.Context, bookingID string) (string, error) {
	if g.tokenErr != nil {
		return "", g.tokenErr
	}
	return "tok_" + bookingID[:8], nil
}

func (g *fakeGateway) Submit(ctx context.Context, token string) (string, error) {
	if g.submitErr != nil {
		return "", g.submitErr
	}
	return "https://pay.example/checkout/" + token, nil
}

var errGatewayDown = errors.New("gateway down")

// weekdayBranch is a branch open every day, 08:00-22:00.
func weekdayBranch() model.Branch {
	return model.Branch{
		ID:        "B001",
		Name:      "Downtown",
		OpenDay:   "Monday to Sunday",
		OpenTime:  "08:00:00",
		CloseTime: "22:00:00",
		IsActive:  true,
	}
}

func testPolicy() Policy {
	return Policy{
		MaxSlotsPerBooking: 10,
		ReserveTTL:         15 * time.Minute,
		SweepInterval:      time.Minute,
		AvailabilityTTL:    30 * time.Second,
	}
}
