package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/courtcaller/court-booking-engine/internal/repository"
	"github.com/courtcaller/court-booking-engine/internal/schedule"
	"github.com/courtcaller/court-booking-engine/internal/service"
)

// BookingHandler exposes the reservation lifecycle over HTTP.  All slot
// arithmetic and claim coordination lives in the service layer; the
// handler only binds requests, picks status codes and shapes JSON.
// Caller identity is asserted upstream and forwarded in the X-User-ID
// header.
type BookingHandler struct {
	Coordinator *service.Coordinator
	Saga        *service.PaymentSaga
}

// NewBookingHandler constructs a BookingHandler.  Both dependencies
// must be non-nil.
func NewBookingHandler(coord *service.Coordinator, saga *service.PaymentSaga) *BookingHandler {
	if coord == nil || saga == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Coordinator: coord, Saga: saga}
}

// Reserve handles POST /v1/bookings.  The body names a branch and the
// time slots to claim:
//
//	{
//	  "branch_id": "B001",
//	  "time_slot": [
//	    {"slot_date": "2024-07-08", "start_time": "09:00:00", "end_time": "10:00:00"}
//	  ]
//	}
//
// On success it returns 201 with the booking ID, the total price and
// the payment deadline.  A slot already claimed by another booking
// returns 409 naming the conflicting slot; invalid selections return
// 400 before anything is claimed.
func (h *BookingHandler) Reserve(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		BranchID string                 `json:"branch_id"`
		TimeSlot []schedule.SlotRequest `json:"time_slot"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.BranchID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "branch_id is required"})
	}

	res, err := h.Coordinator.Reserve(c.Request().Context(), userID, body.BranchID, body.TimeSlot)
	if err != nil {
		var conflict *repository.SlotConflictError
		switch {
		case errors.As(err, &conflict):
			return c.JSON(http.StatusConflict, echo.Map{
				"error": "slot already booked",
				"slot": echo.Map{
					"slot_date":  conflict.Slot.Date,
					"start_time": conflict.Slot.Start,
				},
			})
		case errors.Is(err, repository.ErrBranchNotFound),
			errors.Is(err, repository.ErrPriceNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "branch not found"})
		case errors.Is(err, service.ErrBranchClosed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "branch is not accepting bookings"})
		case errors.Is(err, service.ErrNoSlots),
			errors.Is(err, service.ErrTooManySlots),
			errors.Is(err, service.ErrDuplicateSlot),
			errors.Is(err, service.ErrSlotOutsideHours):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reserve slots"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":        res.BookingID,
		"total_price_cents": res.TotalCents,
		"expires_at":        res.ExpiresAt.Format(time.RFC3339),
	})
}

// StartPayment handles POST /v1/bookings/:id/payment.  It begins the
// payment for a reserved booking and returns the hosted checkout URL
// the client should redirect to.  Gateway failures release the
// reservation and surface as 502.
func (h *BookingHandler) StartPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	redirectURL, err := h.Saga.Start(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, service.ErrNotReserved):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not awaiting payment"})
		case errors.Is(err, service.ErrPaymentInFlight):
			return c.JSON(http.StatusConflict, echo.Map{"error": "a payment is already in progress"})
		case errors.Is(err, service.ErrTokenIssue), errors.Is(err, service.ErrSubmission):
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway rejected the request"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start payment"})
	}
	return c.JSON(http.StatusOK, echo.Map{"redirect_url": redirectURL})
}

// ConfirmPayment handles POST /v1/bookings/:id/confirm, the gateway's
// server-to-server result callback.  The body carries the outcome:
//
//	{"succeeded": true, "reference": "pay_8f2..."}
//
// Duplicate and late callbacks are absorbed; the response always
// reports the booking's current status.
func (h *BookingHandler) ConfirmPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		Succeeded bool   `json:"succeeded"`
		Reference string `json:"reference"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	status, err := h.Saga.Resolve(c.Request().Context(), id, body.Succeeded, body.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to apply payment result"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status})
}

// Cancel handles DELETE /v1/bookings/:id.  Cancelling releases the
// booking's slots back to the pool.  Repeating a cancel is a no-op
// success; a confirmed booking cannot be cancelled and returns 409.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	status, err := h.Coordinator.Cancel(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, service.ErrAlreadyConfirmed):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking is already confirmed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status})
}

// List handles GET /v1/bookings?page=&page_size=.  Out-of-range paging
// parameters fall back to defaults rather than failing.
func (h *BookingHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	bookings, total, err := h.Coordinator.List(c.Request().Context(), page, pageSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	items := make([]echo.Map, 0, len(bookings))
	for i := range bookings {
		items = append(items, bookingJSON(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": items,
		"total": total,
	})
}

// Get handles GET /v1/bookings/:id and returns one booking with its
// slots.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	booking, err := h.Coordinator.Booking(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": bookingJSON(booking)})
}
