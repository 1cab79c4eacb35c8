package extraction

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/llm"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/metrics"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
)

var tracer trace.Tracer = otel.Tracer("tractcall.extraction")

// Service runs the primary extractor under the retry policy and falls back
// to the deterministic extractor whenever the primary errors, returns
// nothing, or returns something that fails validation.
type Service struct {
	primary     map[Field]Extractor
	fallback    map[Field]Extractor
	policy      retry.Policy
	callTimeout time.Duration
	logger      *logging.ChanneledLogger
}

// NewService wires extractors for every field. completer may be nil, in
// which case only the fallbacks run.
func NewService(completer llm.Completer, policy retry.Policy, callTimeout time.Duration, logger *logging.ChanneledLogger) *Service {
	s := &Service{
		primary:     make(map[Field]Extractor),
		fallback:    Fallbacks(),
		policy:      policy,
		callTimeout: callTimeout,
		logger:      logger,
	}
	if s.callTimeout <= 0 {
		s.callTimeout = defaultCallTimeout
	}
	if completer != nil {
		for _, f := range []Field{FieldName, FieldEmail, FieldService} {
			s.primary[f] = NewLLMExtractor(completer, f)
		}
	}
	return s
}

// WithPrimary replaces the primary extractor for one field.
func (s *Service) WithPrimary(field Field, e Extractor) *Service {
	s.primary[field] = e
	return s
}

// Name returns the caller's name or "".
func (s *Service) Name(ctx context.Context, text string, recent []session.Message) string {
	return s.run(ctx, FieldName, Request{Text: text, Recent: recent})
}

// Email returns a valid email or "".
func (s *Service) Email(ctx context.Context, text string, recent []session.Message) string {
	return s.run(ctx, FieldEmail, Request{Text: text, Recent: recent})
}

// Service returns a service label; it is never empty.
func (s *Service) Service(ctx context.Context, text string, recent []session.Message, catalog []string) string {
	return s.run(ctx, FieldService, Request{Text: text, Recent: recent, Catalog: catalog})
}

func (s *Service) run(ctx context.Context, field Field, req Request) string {
	ctx, span := tracer.Start(ctx, "extract."+string(field))
	defer span.End()
	start := time.Now()

	if primary, ok := s.primary[field]; ok && primary != nil {
		value, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
			defer cancel()
			return primary.Extract(callCtx, req)
		})
		if err == nil {
			if v, ok := validators[field](value); ok {
				span.SetAttributes(attribute.String("field", string(field)), attribute.Bool("fallback", false))
				s.logger.Extraction().Debug("Primary extraction succeeded",
					"field", field, "duration", time.Since(start))
				return v
			}
		} else {
			span.RecordError(err)
			s.logger.Extraction().Warn("Primary extraction failed, using fallback",
				"field", field, "error", err.Error(), "duration", time.Since(start))
		}
	}

	metrics.ExtractionFallbacksTotal.WithLabelValues(string(field)).Inc()
	span.SetAttributes(attribute.String("field", string(field)), attribute.Bool("fallback", true))

	value, _ := s.fallback[field].Extract(ctx, req)
	if v, ok := validators[field](value); ok {
		return v
	}
	return ""
}
