// Package extraction resolves name, email and service slots through a
// probabilistic primary extractor with a deterministic fallback, under one
// retry/fallback policy.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/slots"
	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/llm"
)

// Field names the slot being extracted.
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldService Field = "service"
)

// Request is one extraction attempt's input.
type Request struct {
	Text    string
	Recent  []session.Message
	Catalog []string // tenant service names, service field only
}

// Extractor returns the extracted value, or "" when the utterance holds none.
type Extractor interface {
	Extract(ctx context.Context, req Request) (string, error)
}

// FallbackFunc adapts a deterministic function to Extractor.
type FallbackFunc func(req Request) string

func (f FallbackFunc) Extract(_ context.Context, req Request) (string, error) {
	return f(req), nil
}

// Fallbacks returns the deterministic extractor for each field.
func Fallbacks() map[Field]Extractor {
	return map[Field]Extractor{
		FieldName:    FallbackFunc(func(r Request) string { return slots.FallbackName(r.Text) }),
		FieldEmail:   FallbackFunc(func(r Request) string { return slots.FallbackEmail(r.Text) }),
		FieldService: FallbackFunc(func(r Request) string { return slots.FallbackService(r.Text, r.Catalog) }),
	}
}

var prompts = map[Field]string{
	FieldName: `You extract a caller's name from a phone conversation transcript.
Callers may spell their name letter by letter ("j-o-h-n") or correct themselves
("no wait, it's actually Jon"). Always prefer the LAST name the caller gives.
Reply with JSON only: {"value": "<First Last>"} or {"value": null} if the
latest utterance does not contain a name.`,

	FieldEmail: `You extract an email address from a phone conversation transcript.
Callers often speak emails ("john at gmail dot com") or spell them
("j-o-h-n at g-m-a-i-l dot c-o-m"). Convert to the written form. Always prefer
the LAST address the caller gives. Reply with JSON only:
{"value": "<address>"} or {"value": null} if no address is present.`,

	FieldService: `You classify which service a caller wants to book.
If a list of offered services is given, answer with the closest entry from it.
Otherwise answer with a short title-cased label such as "Initial Consultation".
Reply with JSON only: {"value": "<service>"} or {"value": null} if unclear.`,
}

// LLMExtractor asks a Completer for a JSON-shaped answer.
type LLMExtractor struct {
	completer llm.Completer
	field     Field
}

// NewLLMExtractor builds the primary extractor for field.
func NewLLMExtractor(c llm.Completer, field Field) *LLMExtractor {
	return &LLMExtractor{completer: c, field: field}
}

func (e *LLMExtractor) Extract(ctx context.Context, req Request) (string, error) {
	var sb strings.Builder
	if len(req.Recent) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, m := range req.Recent {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
		sb.WriteString("\n")
	}
	if e.field == FieldService && len(req.Catalog) > 0 {
		fmt.Fprintf(&sb, "Offered services: %s\n\n", strings.Join(req.Catalog, "; "))
	}
	fmt.Fprintf(&sb, "Latest caller utterance: %q", req.Text)

	reply, err := e.completer.Complete(ctx, prompts[e.field], sb.String())
	if err != nil {
		return "", err
	}
	var out struct {
		Value *string `json:"value"`
	}
	if err := llm.DecodeJSON(reply, &out); err != nil {
		return "", err
	}
	if out.Value == nil {
		return "", nil
	}
	return strings.TrimSpace(*out.Value), nil
}

// validators reject primary output that would poison the slot.
var validators = map[Field]func(string) (string, bool){
	FieldName: func(v string) (string, bool) {
		if v == "" || len(v) > 60 || strings.ContainsAny(v, "@0123456789") {
			return "", false
		}
		return v, true
	},
	FieldEmail: func(v string) (string, bool) {
		v = strings.ToLower(strings.TrimSpace(v))
		return v, session.ValidEmail(v)
	},
	FieldService: func(v string) (string, bool) {
		if v == "" || len(v) > 80 {
			return "", false
		}
		return v, true
	},
}

// defaultCallTimeout bounds each primary attempt.
const defaultCallTimeout = 10 * time.Second
