package slots

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
)

// ClockTime is a time of day mentioned by the caller. Meridiem is "am", "pm"
// or empty when the caller did not say.
type ClockTime struct {
	Hour      int
	Minute    int
	HasMinute bool
	Meridiem  string
	Start     int
	End       int
}

var (
	hhmmRe         = regexp.MustCompile(`^(\d{1,2}):?(\d{2})$`)
	clockExprRe    = regexp.MustCompile(`\b(\d{1,4})(?::(\d{2}))?(?:\s+(\d{2}))?\s*(am|pm|oclock)?\b`)
	hourWordRe     = regexp.MustCompile(`\b(one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)(\s+(?:thirty|fifteen|forty[- ]five|oclock|am|pm))`)
	atHourWordRe   = regexp.MustCompile(`\bat\s+(one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\b`)
	minuteWordRe   = regexp.MustCompile(`(\d)\s+(thirty|fifteen|forty[- ]five)\b`)
	meridiemDotRe  = regexp.MustCompile(`\b([ap])\.\s?m\.?`)
	digitSpaceAMRe = regexp.MustCompile(`(\d)\s+(am|pm)\b`)
	noonRe         = regexp.MustCompile(`\bnoon\b`)
	midnightRe     = regexp.MustCompile(`\bmidnight\b`)

	// "a second" and "first," are everyday speech, so ordinals need a slot noun
	// or must stand alone. Earliest and latest are unambiguous.
	ordinalRe     = regexp.MustCompile(`\b(first|second|third|fourth|fifth|last)\s+(?:one|slot|option|time|opening|choice|appointment)\b`)
	bareOrdinalRe = regexp.MustCompile(`^\W*(?:the\s+)?(first|second|third|fourth|fifth|last)(?:\s+please)?\W*$`)
	extremeRe     = regexp.MustCompile(`\b(earliest|latest)\b`)
)

var hourWords = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5", "six": "6",
	"seven": "7", "eight": "8", "nine": "9", "ten": "10", "eleven": "11", "twelve": "12",
}

var minuteWords = map[string]string{
	"thirty": "30", "fifteen": "15", "forty five": "45", "forty-five": "45",
}

// normalizeTimeText lowercases text and rewrites spoken time forms into
// digits: "two thirty p.m." becomes "2:30pm".
func normalizeTimeText(text string) string {
	s := strings.ToLower(text)
	s = strings.ReplaceAll(s, "o'clock", "oclock")
	s = meridiemDotRe.ReplaceAllString(s, "${1}m")
	s = noonRe.ReplaceAllString(s, "12:00pm")
	s = midnightRe.ReplaceAllString(s, "12:00am")
	s = hourWordRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := hourWordRe.FindStringSubmatch(m)
		return hourWords[parts[1]] + parts[2]
	})
	s = atHourWordRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := atHourWordRe.FindStringSubmatch(m)
		return "at " + hourWords[parts[1]]
	})
	s = minuteWordRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := minuteWordRe.FindStringSubmatch(m)
		return parts[1] + ":" + minuteWords[parts[2]]
	})
	s = digitSpaceAMRe.ReplaceAllString(s, "${1}${2}")
	return s
}

// FindClockTimes returns every plausible time of day in text, in order.
// Offsets refer to the normalized text.
func FindClockTimes(text string) []ClockTime {
	s := normalizeTimeText(text)
	var out []ClockTime
	for _, m := range clockExprRe.FindAllStringSubmatchIndex(s, -1) {
		raw := s[m[2]:m[3]]
		ct := ClockTime{Start: m[0], End: m[1]}
		if m[8] >= 0 {
			switch s[m[8]:m[9]] {
			case "am", "pm":
				ct.Meridiem = s[m[8]:m[9]]
			}
		}
		switch {
		case len(raw) >= 3:
			if m[4] >= 0 || m[6] >= 0 {
				continue
			}
			v, _ := strconv.Atoi(raw)
			ct.Hour, ct.Minute, ct.HasMinute = v/100, v%100, true
		default:
			ct.Hour, _ = strconv.Atoi(raw)
			if m[4] >= 0 {
				ct.Minute, _ = strconv.Atoi(s[m[4]:m[5]])
				ct.HasMinute = true
			} else if m[6] >= 0 {
				ct.Minute, _ = strconv.Atoi(s[m[6]:m[7]])
				ct.HasMinute = true
			}
		}
		if !validClock(ct) {
			continue
		}
		// A bare number is only a time when something marks it as one.
		explicit := m[8] >= 0 || m[4] >= 0
		if !explicit && !precededByAt(s, m[0]) {
			continue
		}
		out = append(out, ct)
	}
	return out
}

func precededByAt(s string, pos int) bool {
	before := strings.TrimRight(s[:pos], " ")
	return strings.HasSuffix(before, " at") || before == "at" ||
		strings.HasSuffix(before, "around") || strings.HasSuffix(before, "about") ||
		strings.HasSuffix(before, " to") || before == "to" || before == ""
}

func validClock(ct ClockTime) bool {
	if ct.Minute < 0 || ct.Minute > 59 {
		return false
	}
	if ct.Meridiem != "" {
		return ct.Hour >= 1 && ct.Hour <= 12
	}
	return ct.Hour >= 0 && ct.Hour <= 23
}

// NormalizeClock accepts "14:30", "1430", "9:30" or "930" and returns the
// zero-padded HH:mm form.
func NormalizeClock(s string) (string, bool) {
	m := hhmmRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if h > 23 || mm > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, mm), true
}

// FormatClock renders "14:30" as "2:30 PM".
func FormatClock(hhmm string) string {
	norm, ok := NormalizeClock(hhmm)
	if !ok {
		return hhmm
	}
	h, _ := strconv.Atoi(norm[:2])
	mer := "AM"
	if h >= 12 {
		mer = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%s %s", h12, norm[3:], mer)
}

func slotHourMinute(s session.Slot) (int, int, bool) {
	norm, ok := NormalizeClock(s.Start)
	if !ok {
		return 0, 0, false
	}
	h, _ := strconv.Atoi(norm[:2])
	m, _ := strconv.Atoi(norm[3:])
	return h, m, true
}

func compactDisplay(display string) string {
	return strings.ReplaceAll(normalizeTimeText(display), " ", "")
}

// MatchTimeSlot picks the slot the caller asked for. Tiers, in order: the
// exact display string, an ordinal ("the second one"), the parsed canonical
// time, then an hour-only match whose AM/PM must agree with the slot.
func MatchTimeSlot(text string, slots []session.Slot) (session.Slot, bool) {
	if len(slots) == 0 {
		return session.Slot{}, false
	}

	compact := strings.ReplaceAll(normalizeTimeText(text), " ", "")
	for _, s := range slots {
		disp := compactDisplay(s.Display)
		if disp == "" {
			continue
		}
		if containsBounded(compact, disp) {
			return s, true
		}
	}

	times := FindClockTimes(text)
	if len(times) == 0 {
		if s, ok := matchOrdinal(text, slots); ok {
			return s, true
		}
		return session.Slot{}, false
	}

	// Prefer the last time mentioned: "not two, three pm".
	for i := len(times) - 1; i >= 0; i-- {
		if s, ok := matchClock(times[i], slots); ok {
			return s, true
		}
	}
	return session.Slot{}, false
}

// containsBounded reports whether sub occurs in s without a digit directly
// before it, so "2:00pm" does not match inside "12:00pm".
func containsBounded(s, sub string) bool {
	for from := 0; from <= len(s)-len(sub); {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return false
		}
		at := from + i
		if at == 0 || s[at-1] < '0' || s[at-1] > '9' {
			return true
		}
		from = at + 1
	}
	return false
}

func matchOrdinal(text string, slots []session.Slot) (session.Slot, bool) {
	lower := strings.ToLower(text)
	var m string
	for _, re := range []*regexp.Regexp{ordinalRe, bareOrdinalRe, extremeRe} {
		if sm := re.FindStringSubmatch(lower); sm != nil {
			m = sm[1]
			break
		}
	}
	switch m {
	case "first", "earliest":
		return slots[0], true
	case "second":
		if len(slots) > 1 {
			return slots[1], true
		}
	case "third":
		if len(slots) > 2 {
			return slots[2], true
		}
	case "fourth":
		if len(slots) > 3 {
			return slots[3], true
		}
	case "fifth":
		if len(slots) > 4 {
			return slots[4], true
		}
	case "last", "latest":
		return slots[len(slots)-1], true
	}
	return session.Slot{}, false
}

func matchClock(ct ClockTime, slots []session.Slot) (session.Slot, bool) {
	// Canonical: fully determined 24-hour time.
	if h24, ok := to24(ct); ok {
		for _, s := range slots {
			h, m, ok := slotHourMinute(s)
			if ok && h == h24 && m == ct.Minute {
				return s, true
			}
		}
		if ct.HasMinute {
			return session.Slot{}, false
		}
	}

	// Hour-only: compare on the 12-hour dial with AM/PM consistency.
	hour12 := ct.Hour % 12
	var am, pm []session.Slot
	for _, s := range slots {
		h, m, ok := slotHourMinute(s)
		if !ok || h%12 != hour12 {
			continue
		}
		if ct.HasMinute && m != ct.Minute {
			continue
		}
		if ct.Hour > 12 && h != ct.Hour {
			continue
		}
		if h < 12 {
			am = append(am, s)
		} else {
			pm = append(pm, s)
		}
	}

	var pool []session.Slot
	switch ct.Meridiem {
	case "am":
		pool = am
	case "pm":
		pool = pm
	default:
		switch {
		case len(am) > 0 && len(pm) > 0:
			// Business hours: 1-7 means afternoon, 8-11 means morning.
			if ct.Hour >= 1 && ct.Hour <= 7 {
				pool = pm
			} else {
				pool = am
			}
		case len(am) > 0:
			pool = am
		default:
			pool = pm
		}
	}
	if len(pool) == 0 {
		return session.Slot{}, false
	}
	for _, s := range pool {
		if _, m, _ := slotHourMinute(s); m == 0 {
			return s, true
		}
	}
	return pool[0], true
}

// to24 resolves ct to a 24-hour hour when it is unambiguous.
func to24(ct ClockTime) (int, bool) {
	switch ct.Meridiem {
	case "am":
		if ct.Hour == 12 {
			return 0, true
		}
		return ct.Hour, true
	case "pm":
		if ct.Hour == 12 {
			return 12, true
		}
		return ct.Hour + 12, true
	}
	if ct.Hour == 0 || ct.Hour > 12 {
		return ct.Hour, true
	}
	return 0, false
}

// ListSlotDisplays joins slot displays for speech: "9:00 AM, 10:00 AM, or 2:00 PM".
func ListSlotDisplays(slots []session.Slot, max int) string {
	if max <= 0 || max > len(slots) {
		max = len(slots)
	}
	names := make([]string, 0, max)
	for _, s := range slots[:max] {
		names = append(names, s.Display)
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " or " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
}
