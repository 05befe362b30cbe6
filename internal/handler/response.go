package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/courtcaller/court-booking-engine/internal/model"
)

// bookingJSON shapes a booking for API responses.  Slot claims keep
// their date-then-time order from the repository.
func bookingJSON(b *model.Booking) echo.Map {
	slots := make([]echo.Map, 0, len(b.Slots))
	for _, s := range b.Slots {
		slots = append(slots, echo.Map{
			"slot_date":   s.SlotDate,
			"start_time":  s.StartTime,
			"end_time":    s.EndTime,
			"price_cents": s.PriceCents,
		})
	}
	out := echo.Map{
		"booking_id":        b.ID,
		"user_id":           b.UserID,
		"branch_id":         b.BranchID,
		"status":            b.Status,
		"total_price_cents": b.TotalCents,
		"expires_at":        b.ExpiresAt.Format(time.RFC3339),
		"created_at":        b.CreatedAt.Format(time.RFC3339),
		"time_slot":         slots,
	}
	if b.PaymentRef != nil {
		out["payment_ref"] = *b.PaymentRef
	}
	return out
}
