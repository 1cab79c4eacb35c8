// Package intent classifies caller utterances with a prioritized rule set:
// named pattern groups, each guarded by negation patterns.
package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Intent is a classification outcome.
type Intent string

const (
	Goodbye             Intent = "goodbye"
	Emergency           Intent = "emergency"
	Appointment         Intent = "appointment"
	NameChange          Intent = "name_change"
	EmailChange         Intent = "email_change"
	Domain              Intent = "domain"
	FollowUpPositive    Intent = "follow_up_positive"
	FollowUpAppointment Intent = "follow_up_appointment"
	Unknown             Intent = "unknown"
)

// Priority resolves the primary intent when several groups match. Goodbye
// comes first so it always overrides an in-progress flow.
var Priority = []Intent{
	Goodbye,
	Emergency,
	Appointment,
	NameChange,
	EmailChange,
	Domain,
	FollowUpPositive,
	FollowUpAppointment,
}

// Result is the outcome of Classify. Only Primary and the flags drive
// routing; Confidence is informational.
type Result struct {
	Primary    Intent
	Matched    map[Intent]bool
	Negated    bool      // a negation pattern fired and suppressed a match
	Category   *Category // the domain or emergency category that matched
	Confidence float64
}

// Has reports whether intent i matched, regardless of priority.
func (r Result) Has(i Intent) bool { return r.Matched[i] }

type group struct {
	intent    Intent
	patterns  []*regexp.Regexp
	negations []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

var defaultNegations = compileAll(`\b(no|nope|not|don't need|do not need|don't want|do not want|never mind)\b`)

var builtinGroups = []group{
	{
		intent: Goodbye,
		patterns: compileAll(
			`\b(bye|goodbye|good bye|bye bye)\b`,
			`\b(see you|talk to you later)\b`,
			`\b(nothing else|i'm done|i am done|that'll be all)\b`,
			// closing phrases that also appear inside confirmations count only on their own
			`^[\s,.!]*(?:(?:ok|okay|alright|all right|great|well|um|no|nope|thanks|thank you)[\s,.!]+)*(?:that's all|that is all|that's it|that is it|take care)(?:[\s,.!]+(?:thanks|thank you|for now|for today|bye))*[\s,.!]*$`,
			`\bhang up\b`,
			`\bhave a (good|great|nice|wonderful) (day|night|one|evening|weekend)\b`,
		),
		negations: compileAll(`\b(don't|do not|not yet|wait|hold on)\b`),
	},
	{
		intent: Appointment,
		patterns: compileAll(
			`\b(book|booking|schedule|scheduling|reschedule|appointment|reserve|reservation)\b`,
			`\bset up an? (meeting|call|time|visit)\b`,
			`\b(availability|available times|available slots|open slots|openings)\b`,
			`\bcome in (for|on)\b`,
		),
		negations: defaultNegations,
	},
	{
		intent: NameChange,
		patterns: compileAll(
			`\b(change|update|correct|fix)\b.*\bname\b`,
			`\bname\b.*\b(wrong|incorrect|misspelled)\b`,
		),
		negations: compileAll(`\b(don't|do not|no need)\b`),
	},
	{
		intent: EmailChange,
		patterns: compileAll(
			`\b(change|update|correct|fix|new)\b.*\be-?mail\b`,
			`\be-?mail\b.*\b(wrong|incorrect|misspelled)\b`,
		),
		negations: compileAll(`\b(don't|do not|no need)\b`),
	},
	{
		intent: FollowUpPositive,
		patterns: compileAll(
			`^\s*(yes|yeah|yep|yup|sure|ok|okay)\b`,
			`\b(another question|more questions|one more (thing|question)|i have a question|i also wanted|also wanted to ask)\b`,
		),
		negations: compileAll(`\b(no|nope|not|don't)\b`),
	},
	{
		intent: FollowUpAppointment,
		patterns: compileAll(
			`\b(sign me up|let's do it|let's set it up|set one up|get me in|i'd like to come in)\b`,
		),
		negations: defaultNegations,
	},
}

var declineRe = regexp.MustCompile(`(?i)^\s*(no|nope|nah|not really|no thanks|no thank you|i'm good|i'm all set|that's okay)\b`)

// IsDecline reports a plain "no" style answer to a follow-up question.
func IsDecline(text string) bool { return declineRe.MatchString(text) }

// Classifier holds the built-in groups plus tenant categories.
type Classifier struct {
	groups     []group
	categories []*Category
}

// New compiles tenant categories alongside the built-in groups.
func New(categories []Category) (*Classifier, error) {
	c := &Classifier{groups: builtinGroups}
	for i := range categories {
		cat := categories[i]
		if err := cat.compile(); err != nil {
			return nil, fmt.Errorf("intent category %q: %w", cat.Name, err)
		}
		c.categories = append(c.categories, &cat)
	}
	return c, nil
}

// Classify scores text against every group and resolves the primary intent.
func (c *Classifier) Classify(text string) Result {
	res := Result{Primary: Unknown, Matched: make(map[Intent]bool)}
	text = strings.TrimSpace(text)
	if text == "" {
		res.Confidence = 0.1
		return res
	}

	matches := 0
	for _, g := range c.groups {
		if !anyMatch(g.patterns, text) {
			continue
		}
		if anyMatch(g.negations, text) {
			res.Negated = true
			continue
		}
		res.Matched[g.intent] = true
		matches++
	}

	var emergency, domain *Category
	for _, cat := range c.categories {
		if !anyMatch(cat.compiled, text) {
			continue
		}
		if anyMatch(cat.negations, text) {
			res.Negated = true
			continue
		}
		matches++
		if cat.Emergency {
			if emergency == nil {
				emergency = cat
			}
			res.Matched[Emergency] = true
		} else {
			if domain == nil {
				domain = cat
			}
			res.Matched[Domain] = true
		}
	}

	for _, p := range Priority {
		if res.Matched[p] {
			res.Primary = p
			break
		}
	}
	switch res.Primary {
	case Emergency:
		res.Category = emergency
	case Domain:
		res.Category = domain
	}

	res.Confidence = confidence(matches, len(strings.Fields(text)))
	return res
}

// confidence is high for one matching category on a short utterance and
// lower for no match or several competing matches.
func confidence(matches, words int) float64 {
	var c float64
	switch {
	case matches == 0:
		c = 0.1
	case matches == 1:
		switch {
		case words <= 6:
			c = 0.95
		case words <= 15:
			c = 0.8
		default:
			c = 0.65
		}
	default:
		c = 0.7 - 0.1*float64(matches-2)
		if c < 0.3 {
			c = 0.3
		}
	}
	if c < 0.1 {
		c = 0.1
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func anyMatch(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
