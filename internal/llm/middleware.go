// Package llm decorates provider clients with cross-cutting concerns.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	llmclient "promptbuilder/internal/llmClient"
)

// Middleware decorates a Client to inject cross-cutting concerns
// (timeouts, logging, metrics).
type Middleware func(llmclient.Client) llmclient.Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.Client, mws ...Middleware) llmclient.Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

type ctxKeyPhase struct{}

// WithPhase tags requests made with ctx, e.g. "refine" or "analyze".
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// PhaseFrom returns the phase stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyPhase{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// passthrough forwards everything; decorators embed it and override calls.
type passthrough struct{ next llmclient.Client }

func (p passthrough) Name() string  { return p.next.Name() }
func (p passthrough) Model() string { return p.next.Model() }
func (p passthrough) Close() error  { return p.next.Close() }

// -------- Timeout --------

// WithTimeout bounds every call. A call cut off by this deadline fails with
// an error matching both llmclient.ErrTimeout and context.DeadlineExceeded.
// Cancellation of the parent context is passed through unchanged.
func WithTimeout(d time.Duration) Middleware {
	return func(next llmclient.Client) llmclient.Client {
		if d <= 0 {
			return next
		}
		return &timeout{passthrough{next}, d}
	}
}

type timeout struct {
	passthrough
	d time.Duration
}

func (t *timeout) mapErr(parent, ctx context.Context, err error) error {
	if err == nil || parent.Err() != nil {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s after %s: %w: %w", t.Name(), t.d, llmclient.ErrTimeout, context.DeadlineExceeded)
	}
	return err
}

func (t *timeout) GenerateText(parent context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, t.d)
	defer cancel()
	text, err := t.next.GenerateText(ctx, prompt)
	return text, t.mapErr(parent, ctx, err)
}

func (t *timeout) GenerateJSON(parent context.Context, req llmclient.JSONRequest) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(parent, t.d)
	defer cancel()
	raw, err := t.next.GenerateJSON(ctx, req)
	return raw, t.mapErr(parent, ctx, err)
}

// -------- Logging --------

// WithLogging logs request size and errors. A nil logger disables it.
func WithLogging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next llmclient.Client) llmclient.Client {
		return &logging{passthrough{next}, logger.With(zap.String("client", next.Name()))}
	}
}

type logging struct {
	passthrough
	log *zap.Logger
}

func (l *logging) GenerateText(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	l.log.Debug("llm request", zap.String("phase", PhaseFrom(ctx)), zap.Int("bytes", len(prompt)))
	text, err := l.next.GenerateText(ctx, prompt)
	if err != nil {
		l.log.Warn("llm error", zap.String("phase", PhaseFrom(ctx)), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
	return text, err
}

func (l *logging) GenerateJSON(ctx context.Context, req llmclient.JSONRequest) (json.RawMessage, error) {
	start := time.Now()
	l.log.Debug("llm json request", zap.String("phase", PhaseFrom(ctx)),
		zap.Int("bytes", len(req.Prompt)), zap.Int("image_bytes", len(req.Image)))
	raw, err := l.next.GenerateJSON(ctx, req)
	if err != nil {
		l.log.Warn("llm json error", zap.String("phase", PhaseFrom(ctx)), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
	return raw, err
}

// -------- Metrics --------

// Observer receives one record per call.
type Observer interface {
	ObserveLLMCall(model, phase string, elapsed time.Duration, err error)
}

// WithMetrics reports every call to obs. A nil observer disables it.
func WithMetrics(obs Observer) Middleware {
	return func(next llmclient.Client) llmclient.Client {
		if obs == nil {
			return next
		}
		return &metered{passthrough{next}, obs}
	}
}

type metered struct {
	passthrough
	obs Observer
}

func (m *metered) GenerateText(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := m.next.GenerateText(ctx, prompt)
	m.obs.ObserveLLMCall(m.Model(), PhaseFrom(ctx), time.Since(start), err)
	return text, err
}

func (m *metered) GenerateJSON(ctx context.Context, req llmclient.JSONRequest) (json.RawMessage, error) {
	start := time.Now()
	raw, err := m.next.GenerateJSON(ctx, req)
	m.obs.ObserveLLMCall(m.Model(), PhaseFrom(ctx), time.Since(start), err)
	return raw, err
}
