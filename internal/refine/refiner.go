package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	llmclient "promptbuilder/internal/llmClient"
)

var ErrEmptyPrompt = errors.New("refine: prompt is empty")

// Result is a refined prompt. Advisory is set when the fallback served it.
type Result struct {
	Text      string `json:"text"`
	ModelUsed string `json:"model_used"`
	Advisory  string `json:"advisory,omitempty"`
	RequestID string `json:"request_id"`
}

// Instruction wraps a draft prompt in the refinement template.
func Instruction(prompt string) string {
	return "You are a creative prompt engineer. Refine the following concepts into a cohesive, vivid, " +
		"and effective prompt for an AI image generator. Enhance the descriptive language and structure it " +
		"for optimal image generation, but do not add any new core concepts. Concepts: \"" + prompt + "\""
}

// Refiner rejects a call while another is running.
type Refiner struct {
	primary  llmclient.Client
	fallback llmclient.Client
	s        settings
	inflight atomic.Bool
}

// NewRefiner returns a Refiner; a nil primary means AI is disabled. The
// fallback may be nil.
func NewRefiner(primary, fallback llmclient.Client, opts ...Option) *Refiner {
	return &Refiner{primary: primary, fallback: fallback, s: newSettings(opts)}
}

// Enabled reports whether refinement can be attempted.
func (r *Refiner) Enabled() bool { return r != nil && r.primary != nil }

// Busy reports whether a refinement is running.
func (r *Refiner) Busy() bool { return r != nil && r.inflight.Load() }

func (r *Refiner) Refine(ctx context.Context, prompt string) (Result, error) {
	if !r.Enabled() {
		return Result{}, ErrDisabled
	}
	if strings.TrimSpace(prompt) == "" {
		return Result{}, ErrEmptyPrompt
	}
	if !r.inflight.CompareAndSwap(false, true) {
		r.s.rec.ObserveOutcome("refine", OutcomeRejected)
		return Result{}, ErrInFlight
	}
	defer r.inflight.Store(false)

	instruction := Instruction(prompt)
	out, err := withFallback(ctx, r.s, "refine", r.primary, r.fallback,
		func(ctx context.Context, c llmclient.Client) (string, error) {
			text, err := c.GenerateText(ctx, instruction)
			if err != nil {
				return "", err
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return "", llmclient.ErrEmptyResponse
			}
			return text, nil
		})
	if err != nil {
		return Result{}, fmt.Errorf("refine: %w", err)
	}
	return Result{Text: out.value, ModelUsed: out.model, Advisory: out.advisory, RequestID: out.requestID}, nil
}
