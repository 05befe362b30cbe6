// Package queue defines message payloads exchanged over the message
// broker, the publisher for confirmed bookings and the consumer that
// feeds asynchronous payment results into the saga.
package queue

// SlotPayload is the wire form of one reserved slot.
type SlotPayload struct {
	SlotDate  string `json:"slot_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// BookingConfirmedEvent is published when a booking is confirmed.  It
// carries enough for downstream consumers to notify or run analytics
// without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   string        `json:"booking_id"`
	UserID      string        `json:"user_id"`
	BranchID    string        `json:"branch_id"`
	TotalCents  uint32        `json:"total_cents"`
	PaymentRef  string        `json:"payment_ref"`
	Slots       []SlotPayload `json:"slots"`
	ConfirmedAt string        `json:"confirmed_at"`
}

// PaymentResultEvent is the gateway's out-of-band processing result,
// delivered on the payment.result queue once the hosted checkout
// finishes.  The saga never blocks on it; it consumes the event when
// it arrives.
type PaymentResultEvent struct {
	BookingID string `json:"booking_id"`
	Succeeded bool   `json:"succeeded"`
	Reference string `json:"reference"`
}
