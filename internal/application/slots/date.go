// Package slots turns free-form caller utterances into typed appointment and
// identity values. Everything here is deterministic; probabilistic extraction
// lives in the extraction package and falls back to these functions.
package slots

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	monthFirstRe = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)
	dayFirstRe   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlt + `)\b\.?(?:,?\s+(\d{4})\b)?`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	relativeRe   = regexp.MustCompile(`(?i)\b(day after tomorrow|tomorrow|today|tonight|yesterday|next week|this week|next month|this month|next weekend|this weekend|weekend|monday|tuesday|wednesday|thursday|friday|saturday|sunday|tues|thurs|in \d+ days?|in a week|in two weeks|in a couple (?:of )?days)\b`)
)

// DateMatch is a calendar date found in an utterance.
type DateMatch struct {
	Date    time.Time
	HasYear bool
	Start   int
	End     int
}

// ISO renders the date as YYYY-MM-DD.
func (m DateMatch) ISO() string { return FormatISO(m.Date) }

// FindDates returns every explicit calendar date mentioned in text, in order
// of appearance. Dates without a year carry HasYear=false and year 0.
func FindDates(text string, loc *time.Location) []DateMatch {
	if loc == nil {
		loc = time.UTC
	}
	var out []DateMatch
	for _, idx := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		y, _ := strconv.Atoi(text[idx[2]:idx[3]])
		mo, _ := strconv.Atoi(text[idx[4]:idx[5]])
		d, _ := strconv.Atoi(text[idx[6]:idx[7]])
		if t, ok := buildDate(y, time.Month(mo), d, loc); ok {
			out = append(out, DateMatch{Date: t, HasYear: true, Start: idx[0], End: idx[1]})
		}
	}
	for _, idx := range monthFirstRe.FindAllStringSubmatchIndex(text, -1) {
		if m, ok := dateFromParts(text, idx[2:4], idx[4:6], idx[6:8], loc); ok {
			m.Start, m.End = idx[0], idx[1]
			out = appendUnique(out, m)
		}
	}
	for _, idx := range dayFirstRe.FindAllStringSubmatchIndex(text, -1) {
		if m, ok := dateFromParts(text, idx[4:6], idx[2:4], idx[6:8], loc); ok {
			m.Start, m.End = idx[0], idx[1]
			out = appendUnique(out, m)
		}
	}
	sortByStart(out)
	return out
}

func dateFromParts(text string, monthIdx, dayIdx, yearIdx []int, loc *time.Location) (DateMatch, bool) {
	month, ok := monthNames[strings.ToLower(text[monthIdx[0]:monthIdx[1]])]
	if !ok {
		return DateMatch{}, false
	}
	day, _ := strconv.Atoi(text[dayIdx[0]:dayIdx[1]])
	if yearIdx[0] < 0 {
		if _, ok := buildDate(2000, month, day, loc); !ok { // leap year accepts Feb 29
			return DateMatch{}, false
		}
		return DateMatch{Date: time.Date(0, month, day, 0, 0, 0, 0, loc)}, true
	}
	year, _ := strconv.Atoi(text[yearIdx[0]:yearIdx[1]])
	t, ok := buildDate(year, month, day, loc)
	if !ok {
		return DateMatch{}, false
	}
	return DateMatch{Date: t, HasYear: true}, true
}

func buildDate(y int, m time.Month, d int, loc *time.Location) (time.Time, bool) {
	if m < time.January || m > time.December || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func appendUnique(out []DateMatch, m DateMatch) []DateMatch {
	for _, o := range out {
		if m.Start < o.End && o.Start < m.End {
			return out
		}
	}
	return append(out, m)
}

func sortByStart(ms []DateMatch) {
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && ms[j].Start < ms[j-1].Start; j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}
}

// ParseStrictDate accepts only a fully specified calendar date such as
// "October 16, 2025", "16 October 2025" or "2025-10-16". The last such date
// in the utterance wins.
func ParseStrictDate(text string, loc *time.Location) (time.Time, bool) {
	var found time.Time
	ok := false
	for _, m := range FindDates(text, loc) {
		if m.HasYear {
			found, ok = m.Date, true
		}
	}
	return found, ok
}

// ParseLooseDate accepts a month and day with an optional year. A missing
// year resolves to the next occurrence on or after today.
func ParseLooseDate(text string, now time.Time) (DateMatch, bool) {
	ms := FindDates(text, now.Location())
	if len(ms) == 0 {
		return DateMatch{}, false
	}
	m := ms[len(ms)-1]
	if !m.HasYear {
		today := StartOfDay(now)
		t := time.Date(now.Year(), m.Date.Month(), m.Date.Day(), 0, 0, 0, 0, now.Location())
		if t.Month() != m.Date.Month() || t.Before(today) {
			for y := now.Year() + 1; y <= now.Year()+4; y++ {
				t = time.Date(y, m.Date.Month(), m.Date.Day(), 0, 0, 0, 0, now.Location())
				if t.Month() == m.Date.Month() {
					break
				}
			}
		}
		m.Date = t
	}
	return m, true
}

// DetectRelativeDate returns the first relative date term in text, such as
// "tomorrow" or "next week".
func DetectRelativeDate(text string) (string, bool) {
	m := relativeRe.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

// LooksLikeDate reports whether the caller seems to be naming a day rather
// than a time of day.
func LooksLikeDate(text string) bool {
	if len(FindDates(text, time.UTC)) > 0 {
		return true
	}
	if _, ok := DetectRelativeDate(text); ok {
		return len(FindClockTimes(text)) == 0
	}
	return false
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FormatISO renders YYYY-MM-DD.
func FormatISO(t time.Time) string { return t.Format("2006-01-02") }

// FormatLongDate renders "Thursday, October 16, 2025".
func FormatLongDate(t time.Time) string { return t.Format("Monday, January 2, 2006") }

// ParseISO parses YYYY-MM-DD in loc.
func ParseISO(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	return t, err == nil
}

// LongDateFromISO renders an ISO date for speech, falling back to the input.
func LongDateFromISO(s string) string {
	if t, ok := ParseISO(s, time.UTC); ok {
		return FormatLongDate(t)
	}
	return s
}
