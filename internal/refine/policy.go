// Package refine calls a primary text model and degrades once to a fallback
// model when the primary reports it is unavailable.
package refine

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"promptbuilder/internal/llm"
	llmclient "promptbuilder/internal/llmClient"
)

const (
	DefaultPrimaryModel  = "gemini-2.5-flash"
	DefaultFallbackModel = "gemini-1.5-flash"
	// Image analysis degrades to its own model.
	DefaultAnalyzeFallbackModel = "gemini-1.5-flash-latest"
)

var (
	ErrDisabled = errors.New("refine: AI is disabled")
	ErrInFlight = errors.New("refine: a request is already in flight")
)

var availabilityPattern = regexp.MustCompile(`(?i)overloaded|unavailable`)

// IsRetryableAvailability reports whether err means the model could not
// serve the request right now: HTTP 503, status UNAVAILABLE, a message
// mentioning overload or unavailability, or a client-side timeout.
func IsRetryableAvailability(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, llmclient.ErrTimeout) {
		return true
	}
	if apiErr, ok := llmclient.AsAPIError(err); ok {
		if apiErr.Code == 503 || apiErr.Status == "UNAVAILABLE" {
			return true
		}
		return availabilityPattern.MatchString(apiErr.Message)
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return availabilityPattern.MatchString(err.Error())
}

// Advisory is the non-fatal note attached to a fallback result.
func Advisory(fallbackModel string) string {
	return fmt.Sprintf("Primary model unavailable. Used %s instead.", fallbackModel)
}

// Outcome labels reported to a Recorder.
const (
	OutcomePrimary  = "primary"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Recorder receives one outcome per operation.
type Recorder interface {
	ObserveOutcome(op, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(string, string) {}

type settings struct {
	log *zap.Logger
	rec Recorder
}

// Option configures a Refiner or an Analyzer.
type Option func(*settings)

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *settings) {
		if r != nil {
			s.rec = r
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{log: zap.NewNop(), rec: nopRecorder{}}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// call is one attempt against one model.
type call[T any] func(ctx context.Context, c llmclient.Client) (T, error)

type attempt[T any] struct {
	value     T
	model     string
	advisory  string
	requestID string
}

// withFallback runs fn on primary and, only when the failure is retryable
// availability and a fallback exists, exactly once on fallback.
func withFallback[T any](ctx context.Context, s settings, op string, primary, fallback llmclient.Client, fn call[T]) (attempt[T], error) {
	reqID := uuid.NewString()
	log := s.log.With(zap.String("op", op), zap.String("request_id", reqID))
	ctx = llm.WithPhase(ctx, op)

	v, err := fn(ctx, primary)
	if err == nil {
		s.rec.ObserveOutcome(op, OutcomePrimary)
		return attempt[T]{value: v, model: primary.Model(), requestID: reqID}, nil
	}
	if fallback == nil || !IsRetryableAvailability(err) {
		log.Info("primary model failed", zap.String("model", primary.Model()), zap.Error(err))
		s.rec.ObserveOutcome(op, OutcomeFailed)
		var zero attempt[T]
		return zero, fmt.Errorf("%s: %w", primary.Model(), err)
	}

	log.Warn("primary model unavailable, trying fallback",
		zap.String("model", primary.Model()), zap.String("fallback", fallback.Model()), zap.Error(err))
	v, err = fn(ctx, fallback)
	if err != nil {
		log.Warn("fallback model failed", zap.String("model", fallback.Model()), zap.Error(err))
		s.rec.ObserveOutcome(op, OutcomeFailed)
		var zero attempt[T]
		return zero, fmt.Errorf("%s: %w", fallback.Model(), err)
	}
	s.rec.ObserveOutcome(op, OutcomeFallback)
	return attempt[T]{value: v, model: fallback.Model(), advisory: Advisory(fallback.Model()), requestID: reqID}, nil
}
