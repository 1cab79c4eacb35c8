package slots

import "strings"

// DefaultServiceLabel is used when nothing in the utterance names a service.
const DefaultServiceLabel = "General Consultation"

type serviceKeywords struct {
	label    string
	keywords []string
}

// serviceTable is ordered from most to least specific.
var serviceTable = []serviceKeywords{
	{"Follow-up Appointment", []string{"follow up", "follow-up", "followup"}},
	{"Initial Consultation", []string{"initial consultation", "first visit", "new patient", "new client", "first time"}},
	{"Emergency Visit", []string{"emergency", "urgent"}},
	{"Annual Checkup", []string{"checkup", "check-up", "check up", "physical", "annual exam"}},
	{"Teeth Cleaning", []string{"teeth cleaning", "dental cleaning", "cleaning"}},
	{"Haircut", []string{"haircut", "hair cut", "trim"}},
	{"Massage", []string{"massage"}},
	{"Repair Service", []string{"repair", "broken", "leak", "not working"}},
	{"Installation", []string{"installation", "install", "set up", "setup"}},
	{"Estimate", []string{"estimate", "quote"}},
	{"Product Demo", []string{"demo", "demonstration"}},
	{"Consultation", []string{"consultation", "consult", "advice"}},
	{"Meeting", []string{"meeting"}},
}

// MatchService looks for a known service in text. Tenant catalog entries are
// checked before the built-in keyword table.
func MatchService(text string, catalog []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, name := range catalog {
		if n := strings.ToLower(strings.TrimSpace(name)); n != "" && strings.Contains(lower, n) {
			return name, true
		}
	}
	for _, entry := range serviceTable {
		for _, kw := range entry.keywords {
			if containsWord(lower, kw) {
				return entry.label, true
			}
		}
	}
	return "", false
}

// FallbackService never fails: it returns the matched service or the
// default label.
func FallbackService(text string, catalog []string) string {
	if label, ok := MatchService(text, catalog); ok {
		return label
	}
	return DefaultServiceLabel
}

func containsWord(s, word string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		at := from + i
		end := at + len(word)
		before := at == 0 || !isWordByte(s[at-1])
		after := end == len(s) || !isWordByte(s[end])
		if before && after {
			return true
		}
		from = at + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
