package slots

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
)

// iAmPattern indexes the "i'm" introduction, which also precedes states
// ("i'm hoping", "i'm new") rather than names.
const iAmPattern = 3

var (
	nameWord     = `[a-z][a-z'\-]*`
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmy name is\s+(?:actually\s+)?(` + nameWord + `(?:\s+` + nameWord + `){0,3})`),
		regexp.MustCompile(`(?i)\bname's\s+(?:actually\s+)?(` + nameWord + `(?:\s+` + nameWord + `){0,3})`),
		regexp.MustCompile(`(?i)\bname should be\s+(` + nameWord + `(?:\s+` + nameWord + `){0,3})`),
		regexp.MustCompile(`(?i)\b(?:i'm|i am|im)\s+(?:actually\s+)?(` + nameWord + `(?:\s+` + nameWord + `){0,3})`),
		regexp.MustCompile(`(?i)\bthis is\s+(` + nameWord + `(?:\s+` + nameWord + `){0,3})`),
		regexp.MustCompile(`(?i)\bcall me\s+(` + nameWord + `(?:\s+` + nameWord + `){0,3})`),
		regexp.MustCompile(`(?i)\bit's\s+(?:actually\s+)?(` + nameWord + `(?:\s+` + nameWord + `){0,3})`),
		regexp.MustCompile(`(?i)\bit is\s+(?:actually\s+)?(` + nameWord + `(?:\s+` + nameWord + `){0,3})`),
		regexp.MustCompile(`(?i)^\W*(` + nameWord + `(?:\s+` + nameWord + `){0,2})\s+is my name\b`),
	}

	spelledHyphenRe = regexp.MustCompile(`^(?:[a-z0-9]-)+[a-z0-9][.,!?]?$`)
	emailCandidate  = regexp.MustCompile(`[a-z0-9._%+\-]+@[a-z0-9\-]+(?:\.[a-z0-9\-]+)*\.[a-z]{2,}`)
	spokenAtRe      = regexp.MustCompile(`\s+at\s+`)
	spokenDotRe     = regexp.MustCompile(`\s+(?:dot|period)\s+`)
	spokenUnderRe   = regexp.MustCompile(`\s+underscore\s+`)
	spokenDashRe    = regexp.MustCompile(`\s+(?:dash|hyphen)\s+`)
	aroundAtRe      = regexp.MustCompile(`\s*@\s*`)
	aroundDotRe     = regexp.MustCompile(`([a-z0-9])\s*\.\s*([a-z0-9])`)
)

// commonWords are never accepted as part of a name.
var commonWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "is": true, "it": true, "its": true,
	"hi": true, "hello": true, "hey": true, "yes": true, "yeah": true, "yep": true,
	"no": true, "nope": true, "not": true, "wait": true, "sorry": true, "ok": true, "okay": true,
	"um": true, "uh": true, "er": true, "hmm": true, "so": true, "well": true, "oh": true,
	"actually": true, "sure": true, "please": true, "thanks": true, "thank": true, "you": true,
	"my": true, "name": true, "email": true, "mail": true, "address": true, "me": true, "i": true,
	"im": true, "i'm": true, "am": true, "was": true, "be": true, "to": true, "for": true, "of": true,
	"calling": true, "looking": true, "trying": true, "interested": true, "here": true,
	"just": true, "good": true, "fine": true, "great": true, "wondering": true, "going": true,
	"want": true, "wanted": true, "like": true, "would": true, "need": true, "book": true,
	"appointment": true, "schedule": true, "with": true, "about": true, "from": true, "at": true,
	"dot": true, "com": true, "in": true, "on": true, "booking": true, "help": true, "change": true, "update": true, "correct": true,
	"right": true, "that": true, "this": true, "there": true, "speaking": true, "morning": true,
	"afternoon": true, "evening": true, "today": true, "again": true, "also": true, "but": true,
	"should": true, "can": true, "could": true, "do": true, "have": true, "question": true,
	"wrong": true, "incorrect": true, "misspelled": true, "different": true, "spelled": true,
	"new": true,
}

// notNameStates follow "i'm" without being names.
var notNameStates = map[string]bool{
	"new": true, "happy": true, "glad": true, "sorry": true, "not": true, "available": true,
	"free": true, "busy": true, "curious": true, "worried": true, "concerned": true,
	"afraid": true, "ready": true, "sure": true, "unsure": true, "back": true, "still": true,
	"currently": true, "an": true, "a": true, "the": true, "your": true, "their": true,
}

// questionWords mark an utterance as a request rather than a bare name.
var questionWords = map[string]bool{
	"how": true, "what": true, "when": true, "where": true, "why": true, "who": true, "which": true,
	"do": true, "does": true, "did": true, "is": true, "are": true, "can": true, "could": true,
	"much": true, "many": true, "schedule": true, "take": true, "get": true, "make": true,
	"set": true, "tell": true, "know": true, "check": true, "find": true, "give": true,
	"pay": true, "accept": true, "offer": true, "cost": true, "costs": true, "price": true,
	"cancel": true, "reschedule": true, "book": true, "need": true, "want": true,
}

// stateAfterIAm reports words that describe the caller instead of naming them.
func stateAfterIAm(w string) bool {
	w = strings.Trim(w, ".,!?;:\"")
	return notNameStates[w] || (len(w) > 4 && strings.HasSuffix(w, "ing"))
}

// normalizeSpelled joins spelled-out letters: "j-o-h-n" and "j o h n" both
// become "john".
func normalizeSpelled(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	var run []string
	flush := func() {
		if len(run) >= 3 {
			out = append(out, strings.Join(run, ""))
		} else {
			out = append(out, run...)
		}
		run = run[:0]
	}
	for _, f := range fields {
		if spelledHyphenRe.MatchString(f) {
			f = strings.TrimRight(strings.ReplaceAll(f, "-", ""), ".,!?")
		}
		if len(f) == 1 && (unicode.IsLetter(rune(f[0])) || unicode.IsDigit(rune(f[0]))) {
			run = append(run, f)
			continue
		}
		flush()
		out = append(out, f)
	}
	flush()
	return strings.Join(out, " ")
}

// FallbackName extracts a caller name without a model. Introductions such
// as "my name is" or "it's actually" win, and among them the last one
// mentioned. Otherwise a short utterance of name-like words is taken as the
// name itself. Returns "" when nothing usable is present.
func FallbackName(text string) string {
	norm := normalizeSpelled(text)

	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	for i, re := range namePatterns {
		for _, m := range re.FindAllStringSubmatchIndex(norm, -1) {
			words := strings.Fields(norm[m[2]:m[3]])
			if i == iAmPattern && stateAfterIAm(words[0]) {
				continue
			}
			if name := nameFromWords(words); name != "" {
				hits = append(hits, hit{pos: m[0], name: name})
			}
		}
	}
	if len(hits) > 0 {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
		return hits[len(hits)-1].name
	}

	if strings.ContainsAny(norm, "@?") || len(strings.Fields(norm)) > 4 {
		return ""
	}
	var words []string
	for _, w := range strings.Fields(norm) {
		w = strings.Trim(w, ".,!?;:\"")
		if questionWords[w] {
			return ""
		}
		if w == "" || commonWords[w] {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 || len(words) > 3 {
		return ""
	}
	for _, w := range words {
		if !looksLikeNameWord(w) {
			return ""
		}
	}
	return capitalizeName(words)
}

func nameFromWords(words []string) string {
	var parts []string
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"")
		if commonWords[w] || !looksLikeNameWord(w) {
			break
		}
		parts = append(parts, w)
		if len(parts) == 3 {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return capitalizeName(parts)
}

func looksLikeNameWord(w string) bool {
	if len(w) < 2 {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) && r != '\'' && r != '-' {
			return false
		}
	}
	return true
}

func capitalizeName(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		segs := strings.Split(w, "-")
		for j, s := range segs {
			if s == "" {
				continue
			}
			r := []rune(s)
			segs[j] = string(unicode.ToUpper(r[0])) + string(r[1:])
		}
		out[i] = strings.Join(segs, "-")
	}
	return strings.Join(out, " ")
}

// NormalizeSpokenEmail rewrites a spoken email into its written form:
// "j-o-h-n at gmail dot com" becomes "john@gmail.com".
func NormalizeSpokenEmail(text string) string {
	s := " " + normalizeSpelled(text) + " "
	s = spokenUnderRe.ReplaceAllString(s, "_")
	s = spokenDashRe.ReplaceAllString(s, "-")
	s = spokenAtRe.ReplaceAllString(s, "@")
	s = spokenDotRe.ReplaceAllString(s, ".")
	s = aroundAtRe.ReplaceAllString(s, "@")
	s = aroundDotRe.ReplaceAllString(s, "$1.$2")
	return strings.TrimSpace(s)
}

// FallbackEmail returns the last syntactically valid email in text, after
// spoken-form normalization, or "".
func FallbackEmail(text string) string {
	candidates := emailCandidate.FindAllString(NormalizeSpokenEmail(text), -1)
	for i := len(candidates) - 1; i >= 0; i-- {
		c := strings.Trim(candidates[i], ".-_")
		if session.ValidEmail(c) {
			return c
		}
	}
	return ""
}

// ValidEmail reports whether s has the local@domain.tld shape.
func ValidEmail(s string) bool { return session.ValidEmail(s) }
