package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtcaller/court-booking-engine/internal/model"
	"github.com/courtcaller/court-booking-engine/internal/repository"
	"github.com/courtcaller/court-booking-engine/internal/schedule"
)

// 2024-07-08 is a Monday, 2024-07-13 a Saturday; both fall in the
// generator week anchored on Sunday 2024-07-07.
const (
	testMonday   = "2024-07-08"
	testSaturday = "2024-07-13"
	testAnchor   = "2024-07-07"
)

func newTestCoordinator(t *testing.T, store BookingStore) *Coordinator {
	t.Helper()
	branches := &stubBranches{branch: weekdayBranch()}
	prices := &stubPrices{schedule: model.PriceSchedule{WeekdayCents: 10000, WeekendCents: 15000}}
	return NewCoordinator(branches, prices, store, nil, testPolicy())
}

func slotAt(date, start string) schedule.SlotRequest {
	open, _ := schedule.ClockToHours(start)
	return schedule.SlotRequest{
		SlotDate:  date,
		StartTime: start,
		EndTime:   schedule.FormatClock(open+1) + ":00",
	}
}

func TestReserveClaimsAllSlots(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)

	// Deliberately out of order: Saturday before Monday.
	res, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testSaturday, "10:00:00"),
		slotAt(testMonday, "09:00:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(25000), res.TotalCents, "weekday + weekend rate")

	booking, err := coord.Booking(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingReserved, booking.Status)
	require.Len(t, booking.Slots, 2)
	assert.Equal(t, testMonday, booking.Slots[0].SlotDate, "claims sorted date-then-time")
	assert.Equal(t, "10:00:00", booking.Slots[1].StartTime)
	assert.Equal(t, uint32(10000), booking.Slots[0].PriceCents)
	assert.Equal(t, uint32(15000), booking.Slots[1].PriceCents)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), booking.ExpiresAt, 5*time.Second)
}

func TestReserveValidation(t *testing.T) {
	tooMany := make([]schedule.SlotRequest, 11)
	for i := range tooMany {
		tooMany[i] = slotAt(testMonday, fmt.Sprintf("%02d:00:00", 8+i))
	}

	cases := []struct {
		name     string
		requests []schedule.SlotRequest
		want     error
	}{
		{"empty request", nil, ErrNoSlots},
		{"over the cap", tooMany, ErrTooManySlots},
		{"duplicate slot", []schedule.SlotRequest{
			slotAt(testMonday, "09:00:00"),
			slotAt(testMonday, "09:00:00"),
		}, ErrDuplicateSlot},
		{"before opening", []schedule.SlotRequest{slotAt(testMonday, "07:00:00")}, ErrSlotOutsideHours},
		{"ending after close", []schedule.SlotRequest{slotAt(testMonday, "21:30:00")}, ErrSlotOutsideHours},
		{"unparseable date", []schedule.SlotRequest{slotAt("08-07-2024", "09:00:00")}, ErrSlotOutsideHours},
		{"end not one hour after start", []schedule.SlotRequest{
			{SlotDate: testMonday, StartTime: "09:00:00", EndTime: "23:00:00"},
		}, ErrSlotOutsideHours},
		{"end before start", []schedule.SlotRequest{
			{SlotDate: testMonday, StartTime: "09:00:00", EndTime: "08:00:00"},
		}, ErrSlotOutsideHours},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			coord := newTestCoordinator(t, store)
			_, err := coord.Reserve(context.Background(), "u1", "B001", tc.requests)
			require.ErrorIs(t, err, tc.want)
			assert.Empty(t, store.claims, "nothing may be claimed on a rejected request")
		})
	}
}

func TestReserveStoresDerivedSlotEnd(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)

	// One request omits end_time, the other states the only valid one;
	// both must persist end = start + 1h.
	res, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		{SlotDate: testMonday, StartTime: "09:00:00"},
		{SlotDate: testMonday, StartTime: "10:00:00", EndTime: "11:00:00"},
	})
	require.NoError(t, err)

	booking, err := coord.Booking(context.Background(), res.BookingID)
	require.NoError(t, err)
	require.Len(t, booking.Slots, 2)
	assert.Equal(t, "10:00:00", booking.Slots[0].EndTime)
	assert.Equal(t, "11:00:00", booking.Slots[1].EndTime)
}

func TestReserveClosedDayAndInactiveBranch(t *testing.T) {
	store := newMemStore()
	branch := weekdayBranch()
	branch.OpenDay = "Monday to Friday"
	coord := NewCoordinator(
		&stubBranches{branch: branch},
		&stubPrices{schedule: model.PriceSchedule{WeekdayCents: 10000, WeekendCents: 15000}},
		store, nil, testPolicy(),
	)
	_, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testSaturday, "10:00:00"),
	})
	require.ErrorIs(t, err, ErrSlotOutsideHours)

	branch.IsActive = false
	coord = NewCoordinator(
		&stubBranches{branch: branch},
		&stubPrices{schedule: model.PriceSchedule{}},
		store, nil, testPolicy(),
	)
	_, err = coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "10:00:00"),
	})
	require.ErrorIs(t, err, ErrBranchClosed)
}

func TestReserveConflictIsAllOrNothing(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)

	_, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "10:00:00"),
	})
	require.NoError(t, err)

	// Second user wants a free slot plus the taken one.
	_, err = coord.Reserve(context.Background(), "u2", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "09:00:00"),
		slotAt(testMonday, "10:00:00"),
	})
	var conflict *repository.SlotConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "10:00:00", conflict.Slot.Start)

	// The free slot must not be left partially claimed.
	_, taken := store.claims[model.SlotKey{BranchID: "B001", Date: testMonday, Start: "09:00:00"}]
	assert.False(t, taken)
	assert.Len(t, store.bookings, 1)
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.Reserve(context.Background(), fmt.Sprintf("u%d", i), "B001", []schedule.SlotRequest{
				slotAt(testMonday, "18:00:00"),
			})
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range errs {
		var conflict *repository.SlotConflictError
		switch {
		case err == nil:
			winners++
		case errors.As(err, &conflict):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners, "exactly one reservation may win the slot")
	assert.Equal(t, attempts-1, losers)
}

func TestReserveClaimTimeoutReportsConflict(t *testing.T) {
	store := &blockingStore{memStore: newMemStore()}
	branches := &stubBranches{branch: weekdayBranch()}
	prices := &stubPrices{schedule: model.PriceSchedule{WeekdayCents: 10000, WeekendCents: 15000}}
	policy := testPolicy()
	policy.ClaimTimeout = 20 * time.Millisecond
	coord := NewCoordinator(branches, prices, store, nil, policy)

	_, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "09:00:00"),
	})
	var conflict *repository.SlotConflictError
	require.ErrorAs(t, err, &conflict, "a claim stuck past the bound is a lost race")
	assert.Equal(t, testMonday, conflict.Slot.Date)
}

func TestCancelReleasesAndIsIdempotent(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)

	res, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "09:00:00"),
	})
	require.NoError(t, err)

	status, err := coord.Cancel(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingReleased, status)
	assert.Empty(t, store.claims, "cancel returns the slots to the pool")

	// A duplicate cancel observes the terminal state and succeeds.
	status, err = coord.Cancel(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingReleased, status)

	// The freed slot is claimable again.
	_, err = coord.Reserve(context.Background(), "u2", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "09:00:00"),
	})
	require.NoError(t, err)
}

func TestCancelConfirmedBookingFails(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)

	res, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "09:00:00"),
	})
	require.NoError(t, err)
	_, err = store.Confirm(context.Background(), res.BookingID, "pay_123")
	require.NoError(t, err)

	status, err := coord.Cancel(context.Background(), res.BookingID)
	require.ErrorIs(t, err, ErrAlreadyConfirmed)
	assert.Equal(t, model.BookingConfirmed, status)
}

func TestSweepExpiresLapsedReservations(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)

	res, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "09:00:00"),
	})
	require.NoError(t, err)

	// Jump the clock past the payment window.
	coord.now = func() time.Time { return time.Now().Add(time.Hour) }
	coord.SweepOnce(context.Background())

	booking, err := coord.Booking(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingExpired, booking.Status)
	assert.Empty(t, store.claims)

	// A confirmation arriving after the sweep must not resurrect it.
	confirmed, err := store.Confirm(context.Background(), res.BookingID, "pay_999")
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestSweepLeavesFreshReservationsAlone(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)

	res, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "09:00:00"),
	})
	require.NoError(t, err)

	coord.SweepOnce(context.Background())

	booking, err := coord.Booking(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingReserved, booking.Status)
}

func TestAvailabilityMarksClaimedSlots(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)
	anchor, err := time.Parse(schedule.DateLayout, testAnchor)
	require.NoError(t, err)

	_, err = coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "08:00:00"),
	})
	require.NoError(t, err)

	days, err := coord.Availability(context.Background(), "B001", anchor)
	require.NoError(t, err)
	require.Len(t, days, 7, "Monday to Sunday")

	require.Equal(t, testMonday, days[0].Date)
	require.NotEmpty(t, days[0].Slots)
	assert.False(t, days[0].Slots[0].Available, "claimed slot must not be offered")
	assert.True(t, days[0].Slots[1].Available)
	for _, slot := range days[1].Slots {
		assert.True(t, slot.Available)
	}
}

func TestAvailabilityServedFromCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := newMemStore()
	branches := &stubBranches{branch: weekdayBranch()}
	prices := &stubPrices{schedule: model.PriceSchedule{WeekdayCents: 10000, WeekendCents: 15000}}
	coord := NewCoordinator(branches, prices, store, rdb, testPolicy())

	cached := []AvailabilityDay{{Date: testMonday, Slots: []AvailabilitySlot{
		{Label: "08:00 - 09:00", StartTime: "08:00:00", EndTime: "09:00:00", Available: true},
	}}}
	encoded, err := json.Marshal(cached)
	require.NoError(t, err)
	mock.ExpectGet(availabilityKey("B001", testAnchor)).SetVal(string(encoded))

	anchor, err := time.Parse(schedule.DateLayout, testAnchor)
	require.NoError(t, err)
	days, err := coord.Availability(context.Background(), "B001", anchor)
	require.NoError(t, err)
	assert.Equal(t, cached, days)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveInvalidatesAvailabilityCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := newMemStore()
	branches := &stubBranches{branch: weekdayBranch()}
	prices := &stubPrices{schedule: model.PriceSchedule{WeekdayCents: 10000, WeekendCents: 15000}}
	coord := NewCoordinator(branches, prices, store, rdb, testPolicy())

	mock.ExpectDel(availabilityKey("B001", testAnchor)).SetVal(1)

	_, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
		slotAt(testMonday, "09:00:00"),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListClampsPaging(t *testing.T) {
	store := newMemStore()
	coord := newTestCoordinator(t, store)

	for i := 0; i < 3; i++ {
		_, err := coord.Reserve(context.Background(), "u1", "B001", []schedule.SlotRequest{
			slotAt(testMonday, fmt.Sprintf("%02d:00:00", 9+i)),
		})
		require.NoError(t, err)
	}

	bookings, total, err := coord.List(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, bookings, 3)
}
