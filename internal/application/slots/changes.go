package slots

import (
	"regexp"
	"strings"
	"time"
)

// Field names a changeable appointment or identity value.
type Field string

const (
	FieldTitle Field = "title"
	FieldDate  Field = "date"
	FieldTime  Field = "time"
	FieldName  Field = "name"
	FieldEmail Field = "email"
)

// DirectChanges holds every value-bearing change found in one utterance.
type DirectChanges struct {
	Date         *DateMatch
	RelativeDate string // a relative day term the caller used instead of a date
	TimeText     string // utterance with any date removed, for the slot matcher
	Name         string
	Email        string
	TitleText    string
}

// Empty reports whether no change was found.
func (c DirectChanges) Empty() bool {
	return c.Date == nil && c.RelativeDate == "" && c.TimeText == "" &&
		c.Name == "" && c.Email == "" && c.TitleText == ""
}

// Fields lists the fields the utterance changes, in a stable order.
func (c DirectChanges) Fields() []Field {
	var out []Field
	if c.TitleText != "" {
		out = append(out, FieldTitle)
	}
	if c.Date != nil || c.RelativeDate != "" {
		out = append(out, FieldDate)
	}
	if c.TimeText != "" {
		out = append(out, FieldTime)
	}
	if c.Name != "" {
		out = append(out, FieldName)
	}
	if c.Email != "" {
		out = append(out, FieldEmail)
	}
	return out
}

var (
	changeCueRe   = regexp.MustCompile(`(?i)\b(change|update|different|wrong|fix|not correct|isn't correct|isnt correct|modify|switch|edit|another|incorrect|redo|instead|move|make it|how about|can we do|could we do|rather)\b`)
	nameChangeRe  = regexp.MustCompile(`(?i)\b(?:change|update|correct|fix|set|switch)\s+(?:my|the)\s+name\s+to\s+(.+)`)
	emailMention  = regexp.MustCompile(`(?i)(\be-?mail\b|@|\s+at\s+\S+\s+dot\s+)`)
	serviceChange = regexp.MustCompile(`(?i)\b(?:change|switch|update|make|set)\s+(?:the\s+|it\s+|my\s+)?(?:service|appointment type|type|reason|title|purpose)\s+(?:to|for|into)\s+(?:an?\s+)?(.+)`)
	makeItRe      = regexp.MustCompile(`(?i)\b(?:make it|change it to|switch it to|book it as|i want|i'd like)\s+(?:an?\s+)?(.+)`)
	trailingFill  = regexp.MustCompile(`(?i)[\s,.!?]*(?:instead|please|then|thanks|thank you)?[\s,.!?]*$`)

	fieldWordRes = []struct {
		field Field
		re    *regexp.Regexp
	}{
		{FieldEmail, regexp.MustCompile(`(?i)\be-?mail\b`)},
		{FieldName, regexp.MustCompile(`(?i)\bname\b`)},
		{FieldDate, regexp.MustCompile(`(?i)\b(date|day)\b`)},
		{FieldTime, regexp.MustCompile(`(?i)\btime\b`)},
		{FieldTitle, regexp.MustCompile(`(?i)\b(service|appointment type|type|reason|title|purpose)\b`)},
	}

	confirmRe  = regexp.MustCompile(`(?i)\b(yes|yeah|yep|yup|correct|confirm|confirmed|book it|sounds good|that's right|thats right|looks good|looks great|perfect|go ahead|all good|that works|absolutely|sure|right|ok|okay)\b`)
	negationRe = regexp.MustCompile(`(?i)\b(no|not|don't|dont|wait|hold on|cancel|nope)\b`)
	cancelRe   = regexp.MustCompile(`(?i)\b(cancel|never mind|nevermind|forget it|start over|no|nope|don't book)\b`)
)

// ParseDirectChanges finds field changes that carry their new value, e.g.
// "change the date to November 3, 2025" or "actually 3 pm instead".
func ParseDirectChanges(text string, now time.Time) DirectChanges {
	var c DirectChanges

	if emailMention.MatchString(text) {
		c.Email = FallbackEmail(text)
	}

	rest := text
	if dm, ok := ParseLooseDate(text, now); ok {
		c.Date = &dm
		rest = text[:dm.Start] + " " + text[dm.End:]
	} else if term, ok := DetectRelativeDate(text); ok && changeCueRe.MatchString(text) {
		c.RelativeDate = term
	}

	if c.Email == "" && len(FindClockTimes(rest)) > 0 {
		c.TimeText = rest
	}

	if m := nameChangeRe.FindStringSubmatch(text); m != nil {
		c.Name = FallbackName("my name is " + m[1])
	} else if strings.Contains(strings.ToLower(text), "name") && !strings.Contains(strings.ToLower(text), "name to") {
		for _, re := range namePatterns[:3] {
			if re.MatchString(text) {
				c.Name = FallbackName(text)
				break
			}
		}
	}

	if m := serviceChange.FindStringSubmatch(text); m != nil {
		c.TitleText = cleanValue(m[1])
	} else if m := makeItRe.FindStringSubmatch(text); m != nil && c.Date == nil && c.TimeText == "" {
		if _, ok := MatchService(m[1], nil); ok {
			c.TitleText = cleanValue(m[1])
		}
	}
	return c
}

func cleanValue(s string) string {
	return strings.TrimSpace(trailingFill.ReplaceAllString(strings.TrimSpace(s), ""))
}

// DetectChangeField finds a request to change a field without a new value,
// such as "the date is wrong". The earliest mentioned field wins.
func DetectChangeField(text string) (Field, bool) {
	if !changeCueRe.MatchString(text) {
		return "", false
	}
	best, bestPos := Field(""), -1
	for _, fw := range fieldWordRes {
		if loc := fw.re.FindStringIndex(text); loc != nil && (bestPos < 0 || loc[0] < bestPos) {
			best, bestPos = fw.field, loc[0]
		}
	}
	return best, bestPos >= 0
}

// IsConfirmation reports a positive confirmation without any negation. An
// agreeing preamble to a change request ("okay, change the time") is not one.
func IsConfirmation(text string) bool {
	if !confirmRe.MatchString(text) || negationRe.MatchString(text) {
		return false
	}
	_, changing := DetectChangeField(text)
	return !changing
}

// IsCancellation reports a request to abandon the pending booking.
func IsCancellation(text string) bool {
	return cancelRe.MatchString(text)
}
