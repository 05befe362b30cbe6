package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/courtcaller/court-booking-engine/internal/model"
	"github.com/courtcaller/court-booking-engine/internal/schedule"
)

// AvailabilitySlot is one candidate hour with its claim state.  The
// calendar generator only produces candidates; claim state is layered
// on here, inside the coordinator, which owns it.
type AvailabilitySlot struct {
	Label     string `json:"label"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

// AvailabilityDay is one bookable day of a branch's week.
type AvailabilityDay struct {
	Date  string             `json:"date"`
	Slots []AvailabilitySlot `json:"slots"`
}

func availabilityKey(branchID, anchorDate string) string {
	return "availability:" + branchID + ":" + anchorDate
}

// WeekAnchorOf returns the Sunday anchoring the generator week that
// contains date.
func WeekAnchorOf(date time.Time) time.Time {
	return date.AddDate(0, 0, -isoWeekday(date.Weekday()))
}

// Availability returns the branch's week calendar for the given
// anchor with each candidate slot marked available or claimed.
// Results are cached in Redis for a short TTL; every claim or release
// invalidates the affected weeks.
func (c *Coordinator) Availability(ctx context.Context, branchID string, weekAnchor time.Time) ([]AvailabilityDay, error) {
	key := availabilityKey(branchID, weekAnchor.Format(schedule.DateLayout))
	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
			var days []AvailabilityDay
			if json.Unmarshal(cached, &days) == nil {
				return days, nil
			}
		}
	}

	branch, err := c.branches.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	week, err := schedule.GenerateWeek(*branch, weekAnchor)
	if err != nil {
		return nil, err
	}
	if len(week) == 0 {
		return []AvailabilityDay{}, nil
	}

	from := week[0].Date.Format(schedule.DateLayout)
	to := week[len(week)-1].Date.Format(schedule.DateLayout)
	claimed, err := c.bookings.ClaimedKeys(ctx, branchID, from, to)
	if err != nil {
		return nil, err
	}

	days := make([]AvailabilityDay, 0, len(week))
	for _, day := range week {
		date := day.Date.Format(schedule.DateLayout)
		slots := make([]AvailabilitySlot, 0, len(day.Labels))
		for _, label := range day.Labels {
			start, end, err := schedule.LabelBounds(label)
			if err != nil {
				return nil, err
			}
			_, taken := claimed[model.SlotKey{BranchID: branchID, Date: date, Start: start}]
			slots = append(slots, AvailabilitySlot{
				Label:     label,
				StartTime: start,
				EndTime:   end,
				Available: !taken,
			})
		}
		days = append(days, AvailabilityDay{Date: date, Slots: slots})
	}

	if c.rdb != nil {
		if encoded, err := json.Marshal(days); err == nil {
			if err := c.rdb.Set(ctx, key, encoded, c.policy.AvailabilityTTL).Err(); err != nil {
				log.Printf("coordinator: caching availability %s: %v", key, err)
			}
		}
	}
	return days, nil
}

// invalidateAvailability drops the cached availability of every week
// the booking's slots touch.  Cache errors are logged, never fatal:
// the TTL bounds staleness regardless.
func (c *Coordinator) invalidateAvailability(ctx context.Context, booking *model.Booking) {
	if c.rdb == nil || booking == nil {
		return
	}
	anchors := make(map[string]struct{})
	for _, slot := range booking.Slots {
		date, err := time.Parse(schedule.DateLayout, slot.SlotDate)
		if err != nil {
			continue
		}
		anchors[WeekAnchorOf(date).Format(schedule.DateLayout)] = struct{}{}
	}
	for anchor := range anchors {
		key := availabilityKey(booking.BranchID, anchor)
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			log.Printf("coordinator: invalidating %s: %v", key, err)
		}
	}
}
