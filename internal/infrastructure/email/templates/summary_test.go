package templates

import (
	"strings"
	"testing"
)

func TestGetSummaryEmailContent(t *testing.T) {
	html := GetSummaryEmailContent(SummaryProps{
		BusinessName: "Acme Dental",
		CallerName:   "John",
		Appointment: &AppointmentProps{
			Title: "Cleaning",
			When:  "Monday, October 20, 2025 at 10:00 AM",
			Link:  "https://calendar.google.com/calendar/event?eid=01H",
		},
		Transcript: []TranscriptLine{
			{Speaker: "Caller", Text: "I'd like a <cleaning>"},
			{Speaker: "Agent", Text: "Sure."},
		},
	})

	for _, want := range []string{
		"Thanks for calling Acme Dental",
		"Hi John",
		"Appointment booked:</strong> Cleaning",
		"View appointment",
		"eid=01H",
		"&lt;cleaning&gt;",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("summary missing %q", want)
		}
	}

	plain := GetSummaryEmailContent(SummaryProps{BusinessName: "Acme"})
	if strings.Contains(plain, "View appointment") || !strings.Contains(plain, "Hi there") {
		t.Errorf("unexpected summary without appointment: %s", plain)
	}
}

func TestGetEmailLayoutWrapsContent(t *testing.T) {
	out := GetEmailLayout(EmailLayoutProps{Content: "<p>inner</p>", Title: "Summary"})
	if !strings.Contains(out, "<p>inner</p>") || !strings.Contains(out, "<title>Summary</title>") {
		t.Errorf("layout did not embed content: %s", out)
	}
}
