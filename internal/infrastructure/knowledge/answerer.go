package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/llm"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
)

const answerSystemPrompt = `You answer a caller's question on a phone line using only the provided passages.
Reply in at most two short spoken sentences with no lists or markdown.
If the passages do not answer the question, say you are not sure and offer to have someone follow up.`

// Answerer phrases passages into a short spoken reply. Without a completer,
// or when the completer fails, it reads out the top passage.
type Answerer struct {
	completer llm.Completer
	policy    retry.Policy
	timeout   time.Duration
	logger    *slog.Logger
}

var _ gateways.Answerer = (*Answerer)(nil)

func NewAnswerer(completer llm.Completer, policy retry.Policy, timeout time.Duration, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{completer: completer, policy: policy, timeout: timeout, logger: logger}
}

func (a *Answerer) Answer(ctx context.Context, query string, passages []gateways.Passage) (string, error) {
	if len(passages) == 0 {
		return "", nil
	}
	if a.completer == nil {
		return Excerpt(passages[0].Text, 2), nil
	}

	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Text)
	}
	user := fmt.Sprintf("Passages:\n%s\nQuestion: %s", b.String(), query)

	reply, err := retry.DoValue(ctx, a.policy, func(ctx context.Context) (string, error) {
		if a.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}
		return a.completer.Complete(ctx, answerSystemPrompt, user)
	})
	reply = strings.TrimSpace(reply)
	if err != nil || reply == "" {
		a.logger.Warn("Answer phrasing failed, reading top passage", "provider", a.completer.Name(), "error", err)
		return Excerpt(passages[0].Text, 2), nil
	}
	return reply, nil
}

// Excerpt returns the first n sentences of text.
func Excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	count := 0
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' {
			if i+1 == len(text) || text[i+1] == ' ' {
				count++
				if count == n {
					return text[:i+1]
				}
			}
		}
	}
	return text
}
