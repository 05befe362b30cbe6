// Package schedule contains the pure scheduling logic of the booking
// engine: turning a branch's operating-hours configuration into the
// week calendar of candidate slots, and the bounded selection set a
// client builds before asking the coordinator to reserve.  Nothing in
// this package performs I/O or reads claimed-slot state.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/courtcaller/court-booking-engine/internal/model"
)

// DateLayout is the wire format for slot dates.
const DateLayout = "2006-01-02"

// ErrBadOpenDay is returned when a branch's open-day range cannot be
// parsed.  Callers must treat the branch as having no bookable days.
var ErrBadOpenDay = errors.New("schedule: malformed open-day range")

// dayNumbers maps weekday names to ISO ordinals (1=Monday..7=Sunday).
var dayNumbers = map[string]int{
	"Monday":    1,
	"Tuesday":   2,
	"Wednesday": 3,
	"Thursday":  4,
	"Friday":    5,
	"Saturday":  6,
	"Sunday":    7,
}

// ParseOpenDay parses a range of the form "Monday to Friday" into its
// two weekday ordinals.  Both endpoints must be recognized weekday
// names; the range is inclusive.
func ParseOpenDay(openDay string) (int, int, error) {
	parts := strings.Split(openDay, " to ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadOpenDay, openDay)
	}
	start, ok := dayNumbers[strings.TrimSpace(parts[0])]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown weekday %q", ErrBadOpenDay, parts[0])
	}
	end, ok := dayNumbers[strings.TrimSpace(parts[1])]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown weekday %q", ErrBadOpenDay, parts[1])
	}
	return start, end, nil
}

// ClockToHours converts a clock string ("08:00", "09:30:00") into
// fractional hours.  Seconds are accepted and contribute their
// fraction, matching how the branch service stores open/close times.
func ClockToHours(clock string) (float64, error) {
	parts := strings.Split(clock, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: bad clock time %q", ErrBadOpenDay, clock)
	}
	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: bad clock time %q", ErrBadOpenDay, clock)
		}
		fields[i] = n
	}
	if fields[0] > 23 || fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("%w: bad clock time %q", ErrBadOpenDay, clock)
	}
	return float64(fields[0]) + float64(fields[1])/60 + float64(fields[2])/3600, nil
}

// FormatClock renders fractional hours as "HH:MM" (9.5 -> "09:30").
func FormatClock(hours float64) string {
	h := int(math.Floor(hours))
	m := int(math.Round((hours - float64(h)) * 60))
	if m == 60 {
		h++
		m = 0
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// SlotLabels emits one label per whole hour in [open, close), formatted
// "HH:MM - HH:MM".  A close time at or before open yields no labels.
func SlotLabels(open, close float64) []string {
	var labels []string
	for hour := open; hour < close; hour++ {
		labels = append(labels, fmt.Sprintf("%s - %s", FormatClock(hour), FormatClock(hour+1)))
	}
	return labels
}

// LabelBounds splits a slot label back into its start and end clock
// times in HH:MM:SS form, the format reservation requests carry.
func LabelBounds(label string) (start, end string, err error) {
	parts := strings.Split(label, " - ")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("schedule: bad slot label %q", label)
	}
	return parts[0] + ":00", parts[1] + ":00", nil
}

// Day is one bookable calendar day with its ordered slot labels.
type Day struct {
	Date   time.Time `json:"date"`
	Labels []string  `json:"slots"`
}

// GenerateWeek maps a branch's schedule onto the week identified by
// weekAnchor (conventionally the Sunday starting the week; each open
// ordinal is offset from it in days).  The output is deterministic:
// date-major, time-ascending.  A malformed branch schedule returns
// ErrBadOpenDay and no days.
func GenerateWeek(b model.Branch, weekAnchor time.Time) ([]Day, error) {
	startDay, endDay, err := ParseOpenDay(b.OpenDay)
	if err != nil {
		return nil, err
	}
	open, err := ClockToHours(b.OpenTime)
	if err != nil {
		return nil, err
	}
	close, err := ClockToHours(b.CloseTime)
	if err != nil {
		return nil, err
	}
	if endDay < startDay {
		// A reversed range ("Friday to Monday") comes from branch
		// configuration, not user input; it offers no bookable days.
		return []Day{}, nil
	}
	labels := SlotLabels(open, close)
	days := make([]Day, 0, endDay-startDay+1)
	for ord := startDay; ord <= endDay; ord++ {
		days = append(days, Day{
			Date:   weekAnchor.AddDate(0, 0, ord),
			Labels: append([]string(nil), labels...),
		})
	}
	return days, nil
}
