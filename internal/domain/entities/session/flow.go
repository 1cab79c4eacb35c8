package session

// Step is the current state of the appointment flow.
type Step string

const (
	StepNone           Step = "NONE"
	StepSelectCalendar Step = "SELECT_CALENDAR"
	StepCollectName    Step = "COLLECT_NAME"
	StepCollectEmail   Step = "COLLECT_EMAIL"
	StepCollectTitle   Step = "COLLECT_TITLE"
	StepCollectDate    Step = "COLLECT_DATE"
	StepCollectTime    Step = "COLLECT_TIME"
	StepReview         Step = "REVIEW"
	StepConfirm        Step = "CONFIRM"
)

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	switch s {
	case StepNone, StepSelectCalendar, StepCollectName, StepCollectEmail,
		StepCollectTitle, StepCollectDate, StepCollectTime, StepReview, StepConfirm:
		return true
	}
	return false
}

// CalendarType selects the calendar the booking is written to.
type CalendarType string

const (
	CalendarUnset     CalendarType = ""
	CalendarGoogle    CalendarType = "google"
	CalendarMicrosoft CalendarType = "microsoft"
)

// Slot is one bookable start time on the held date.
type Slot struct {
	Start   string `json:"start"` // HH:mm, 24-hour
	Display string `json:"display"`
}

// SlotBag accumulates appointment details across turns.
//
// Invariant: AvailableSlots always belong to Date, and Time is either empty
// or the Start of one of AvailableSlots.
type SlotBag struct {
	Title          string `json:"title,omitempty"`
	Date           string `json:"date,omitempty"` // YYYY-MM-DD
	Time           string `json:"time,omitempty"` // HH:mm
	TimeDisplay    string `json:"timeDisplay,omitempty"`
	AvailableSlots []Slot `json:"availableSlots,omitempty"`
}

// SetDate replaces the held date and its slots. The held time survives only
// if its start is present in the new slots; it reports whether it survived.
func (b *SlotBag) SetDate(date string, slots []Slot) bool {
	b.Date = date
	b.AvailableSlots = append([]Slot(nil), slots...)
	if b.Time == "" {
		b.TimeDisplay = ""
		return false
	}
	if s, ok := b.FindSlot(b.Time); ok {
		b.TimeDisplay = s.Display
		return true
	}
	b.ClearTime()
	return false
}

// SetTime stores a slot chosen from AvailableSlots.
func (b *SlotBag) SetTime(s Slot) {
	b.Time = s.Start
	b.TimeDisplay = s.Display
}

// ClearTime forgets the chosen time.
func (b *SlotBag) ClearTime() {
	b.Time = ""
	b.TimeDisplay = ""
}

// FindSlot looks up a slot by its start.
func (b *SlotBag) FindSlot(start string) (Slot, bool) {
	for _, s := range b.AvailableSlots {
		if s.Start == start {
			return s, true
		}
	}
	return Slot{}, false
}

// Complete reports whether everything needed for a booking is held.
func (b *SlotBag) Complete() bool {
	return b.Title != "" && b.Date != "" && b.Time != ""
}

// KeepOnlyTitle drops every field except the title.
func (b *SlotBag) KeepOnlyTitle() {
	*b = SlotBag{Title: b.Title}
}

// Clone returns a deep copy.
func (b SlotBag) Clone() SlotBag {
	b.AvailableSlots = append([]Slot(nil), b.AvailableSlots...)
	return b
}

// AppointmentFlow is the booking state machine's persisted state.
type AppointmentFlow struct {
	Active       bool         `json:"active"`
	Step         Step         `json:"step"`
	Details      SlotBag      `json:"details"`
	CalendarType CalendarType `json:"calendarType,omitempty"`
}

// Reset returns the flow to its idle state with empty details.
func (f *AppointmentFlow) Reset() {
	*f = AppointmentFlow{Step: StepNone}
}

// MoveTo activates the flow at step.
func (f *AppointmentFlow) MoveTo(step Step) {
	f.Active = step != StepNone
	f.Step = step
}
