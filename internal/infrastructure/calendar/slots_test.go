package calendar

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
)

var nineToFive = Hours{Open: 9 * 60, Close: 17 * 60, SlotMinutes: 60, DurationMinutes: 60}

func starts(slots []session.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start
	}
	return out
}

func TestGenerateSlots(t *testing.T) {
	day := time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC)
	before := day.AddDate(0, 0, -1)

	tests := []struct {
		name   string
		hours  Hours
		booked map[string]bool
		now    time.Time
		want   []string
	}{
		{
			name:  "full day",
			hours: nineToFive,
			now:   before,
			want:  []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"},
		},
		{
			name:   "booked removed",
			hours:  nineToFive,
			booked: map[string]bool{"10:00": true, "16:00": true},
			now:    before,
			want:   []string{"09:00", "11:00", "12:00", "13:00", "14:00", "15:00"},
		},
		{
			name:  "past starts removed",
			hours: nineToFive,
			now:   day.Add(14*time.Hour + 30*time.Minute),
			want:  []string{"15:00", "16:00"},
		},
		{
			name:  "half hour slots with long appointment",
			hours: Hours{Open: 9 * 60, Close: 11 * 60, SlotMinutes: 30, DurationMinutes: 60},
			now:   before,
			want:  []string{"09:00", "09:30", "10:00"},
		},
		{
			name:  "invalid hours",
			hours: Hours{Open: 9 * 60, Close: 17 * 60},
			now:   before,
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := starts(GenerateSlots(day, tt.hours, tt.booked, tt.now))
			if len(got) != len(tt.want) {
				t.Fatalf("GenerateSlots() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("GenerateSlots() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestGenerateSlotsDisplay(t *testing.T) {
	day := time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(day, Hours{Open: 13 * 60, Close: 15 * 60, SlotMinutes: 90, DurationMinutes: 30}, nil, day)
	if len(slots) != 2 {
		t.Fatalf("got %d slots", len(slots))
	}
	if slots[0].Display != "1:00 PM" || slots[1].Display != "2:30 PM" {
		t.Errorf("displays = %q, %q", slots[0].Display, slots[1].Display)
	}
}

func TestEventLink(t *testing.T) {
	tests := []struct {
		base string
		ct   session.CalendarType
		want string
	}{
		{"https://book.example.com/e/", session.CalendarGoogle, "https://book.example.com/e/01H"},
		{"", session.CalendarMicrosoft, "https://outlook.office.com/calendar/item/01H"},
		{"", session.CalendarGoogle, "https://calendar.google.com/calendar/event?eid=01H"},
		{"", session.CalendarUnset, "https://calendar.google.com/calendar/event?eid=01H"},
	}
	for _, tt := range tests {
		if got := EventLink(tt.base, tt.ct, "01H"); got != tt.want {
			t.Errorf("EventLink(%q, %q) = %q, want %q", tt.base, tt.ct, got, tt.want)
		}
	}
}
