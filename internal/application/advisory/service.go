// Package advisory turns farmer snapshots into structured recommendations
// using the text-generation provider, with a local fallback for every
// failure.
package advisory

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	domain "github.com/smartcrop/advisor/internal/domain/advisory"
	"github.com/smartcrop/advisor/internal/ports/outbound"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 1024
)

// Recorder observes recommendation outcomes.
type Recorder interface {
	RecordRecommendation(kind string, source string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRecommendation(string, string, time.Duration) {}

// Service is the recommendation pipeline.
type Service struct {
	provider    outbound.CompletionProvider
	fallbacks   *fallbacks
	recorder    Recorder
	now         func() time.Time
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRand sets the random source used for fallback values.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) { s.fallbacks = newFallbacks(rng) }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithSampling overrides temperature and token bound.
func WithSampling(temperature float64, maxTokens int) Option {
	return func(s *Service) {
		if temperature > 0 {
			s.temperature = temperature
		}
		if maxTokens > 0 {
			s.maxTokens = maxTokens
		}
	}
}

// NewService creates the recommendation pipeline.
func NewService(provider outbound.CompletionProvider, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		provider:    provider,
		fallbacks:   newFallbacks(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))),
		recorder:    nopRecorder{},
		now:         time.Now,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		logger:      logger.Named("advisory"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock, used by callers to date snapshots.
func (s *Service) Now() time.Time {
	return s.now()
}

// Recommend returns a recommendation of kind for snap. It never fails:
// any provider, extraction or decoding problem yields a fallback result
// with the same fields.
func (s *Service) Recommend(ctx context.Context, kind domain.Kind, snap domain.Snapshot) domain.Result {
	ctx, span := otel.Tracer("smartcrop/advisory").Start(ctx, "advisory.recommend")
	defer span.End()

	start := time.Now()
	result := s.recommend(ctx, kind, snap)
	s.recorder.RecordRecommendation(metricKind(kind), string(result.Source), time.Since(start))

	span.SetAttributes(
		attribute.String("advisory.kind", string(kind)),
		attribute.String("advisory.source", string(result.Source)),
	)
	if result.Reason != "" {
		span.SetAttributes(attribute.String("advisory.fallback_reason", result.Reason))
	}
	return result
}

func (s *Service) recommend(ctx context.Context, kind domain.Kind, snap domain.Snapshot) domain.Result {
	fallback := s.fallbacks.For(kind, snap)
	degrade := func(reason string, err error) domain.Result {
		fields := []zap.Field{zap.String("kind", string(kind)), zap.String("reason", reason)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if errors.Is(err, outbound.ErrProviderNotConfigured) {
			s.logger.Debug("Using fallback recommendation", fields...)
		} else {
			s.logger.Warn("Using fallback recommendation", fields...)
		}
		return domain.Result{
			Kind:        kind,
			Fields:      fallback,
			Source:      domain.SourceFallback,
			Reason:      reason,
			GeneratedAt: s.now(),
		}
	}

	if !kind.Valid() {
		return degrade("unknown kind", nil)
	}
	if !s.provider.Configured() {
		return degrade("provider not configured", outbound.ErrProviderNotConfigured)
	}

	text, err := s.provider.Complete(ctx, outbound.CompletionRequest{
		Messages: []outbound.PromptMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(kind, snap)},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return degrade("provider call failed", err)
	}

	payload, ok := ExtractPayload(text)
	if !ok {
		return degrade("empty provider reply", nil)
	}

	parsed, err := ParseObject(payload)
	if err != nil {
		return degrade("invalid JSON in provider reply", err)
	}

	fields, replaced := domain.SchemaFor(kind).Conform(parsed, fallback)
	if len(replaced) > 0 {
		s.logger.Debug("Completed provider reply from fallback",
			zap.String("kind", string(kind)),
			zap.Strings("fields", replaced),
		)
	}

	return domain.Result{
		Kind:        kind,
		Fields:      fields,
		Source:      domain.SourceProvider,
		GeneratedAt: s.now(),
	}
}

func metricKind(kind domain.Kind) string {
	if strings.HasPrefix(string(kind), "task:") {
		return "task"
	}
	return string(kind)
}
