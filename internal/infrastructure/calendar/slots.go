package calendar

import (
	"fmt"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
)

// Hours is the business-hours window used for slot generation, in minutes
// after midnight.
type Hours struct {
	Open            int
	Close           int
	SlotMinutes     int
	DurationMinutes int
}

// GenerateSlots lists the bookable starts on day. A slot is offered when the
// whole appointment fits before closing, its start is not booked or blocked,
// and it starts after now.
func GenerateSlots(day time.Time, h Hours, booked map[string]bool, now time.Time) []session.Slot {
	if h.SlotMinutes <= 0 || h.DurationMinutes <= 0 {
		return nil
	}
	y, m, d := day.Date()
	loc := day.Location()

	var out []session.Slot
	for start := h.Open; start+h.DurationMinutes <= h.Close; start += h.SlotMinutes {
		at := time.Date(y, m, d, start/60, start%60, 0, 0, loc)
		if !at.After(now) {
			continue
		}
		key := fmt.Sprintf("%02d:%02d", start/60, start%60)
		if booked[key] {
			continue
		}
		out = append(out, session.Slot{Start: key, Display: at.Format("3:04 PM")})
	}
	return out
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
