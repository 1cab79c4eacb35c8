package slots

import (
	"testing"
	"time"
)

func TestParseDirectChanges(t *testing.T) {
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

	t.Run("date without year", func(t *testing.T) {
		c := ParseDirectChanges("actually can we do October 20th instead", now)
		if c.Date == nil || c.Date.ISO() != "2025-10-20" {
			t.Fatalf("Date = %+v, want 2025-10-20", c.Date)
		}
		if c.TimeText != "" || c.Email != "" || c.Name != "" || c.TitleText != "" {
			t.Errorf("unexpected extra changes: %+v", c)
		}
	})

	t.Run("date with year", func(t *testing.T) {
		c := ParseDirectChanges("change the date to November 3, 2025", now)
		if c.Date == nil || c.Date.ISO() != "2025-11-03" {
			t.Fatalf("Date = %+v, want 2025-11-03", c.Date)
		}
		if c.TimeText != "" {
			t.Errorf("year must not be read as a time: %q", c.TimeText)
		}
	})

	t.Run("date and time together", func(t *testing.T) {
		c := ParseDirectChanges("make it October 20th at 3 pm", now)
		if c.Date == nil || c.TimeText == "" {
			t.Fatalf("want date and time, got %+v", c)
		}
		if fs := c.Fields(); len(fs) != 2 || fs[0] != FieldDate || fs[1] != FieldTime {
			t.Errorf("Fields = %v", fs)
		}
	})

	t.Run("time only", func(t *testing.T) {
		c := ParseDirectChanges("change the time to 3 pm", now)
		if c.TimeText == "" || c.Date != nil {
			t.Errorf("want time only, got %+v", c)
		}
	})

	t.Run("spoken email", func(t *testing.T) {
		c := ParseDirectChanges("change my email to jane at example dot com", now)
		if c.Email != "jane@example.com" {
			t.Errorf("Email = %q", c.Email)
		}
		if c.TimeText != "" {
			t.Errorf("TimeText = %q, want empty", c.TimeText)
		}
	})

	t.Run("name", func(t *testing.T) {
		c := ParseDirectChanges("please change my name to Jon Smith", now)
		if c.Name != "Jon Smith" {
			t.Errorf("Name = %q", c.Name)
		}
	})

	t.Run("service", func(t *testing.T) {
		c := ParseDirectChanges("change the service to a massage instead", now)
		if c.TitleText != "massage" {
			t.Errorf("TitleText = %q", c.TitleText)
		}
	})

	t.Run("relative day", func(t *testing.T) {
		c := ParseDirectChanges("actually make it Tuesday instead", now)
		if c.RelativeDate != "tuesday" || c.Date != nil {
			t.Errorf("got %+v", c)
		}
	})

	t.Run("plain confirmation", func(t *testing.T) {
		if c := ParseDirectChanges("yes that's right", now); !c.Empty() {
			t.Errorf("confirmation parsed as change: %+v", c)
		}
	})
}

func TestDetectChangeField(t *testing.T) {
	tests := []struct {
		input string
		want  Field
		ok    bool
	}{
		{"I need to change the date", FieldDate, true},
		{"the time is wrong", FieldTime, true},
		{"can I update my email", FieldEmail, true},
		{"my name is spelled incorrectly... change my name", FieldName, true},
		{"I want a different service", FieldTitle, true},
		{"sounds good", "", false},
		{"yes, the date is correct", "", false},
		{"the date is not correct", FieldDate, true},
		{"what is the date", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := DetectChangeField(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("DetectChangeField(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestConfirmationAndCancellation(t *testing.T) {
	confirms := []string{"yes", "Yes, book it", "that's right", "sounds good to me", "perfect", "yes, the time is correct"}
	for _, c := range confirms {
		if !IsConfirmation(c) {
			t.Errorf("IsConfirmation(%q) = false", c)
		}
	}
	notConfirms := []string{"no", "wait, not yet", "I'm not sure", "hmm",
		"Okay, can you change the time?", "Sure, but the date is wrong", "Right, I need to change the service"}
	for _, c := range notConfirms {
		if IsConfirmation(c) {
			t.Errorf("IsConfirmation(%q) = true", c)
		}
	}
	if !IsCancellation("never mind, cancel that") {
		t.Error("IsCancellation(cancel) = false")
	}
	if IsCancellation("yes please") {
		t.Error("IsCancellation(yes please) = true")
	}
}
