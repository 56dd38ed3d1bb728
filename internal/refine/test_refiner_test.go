package refine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"promptbuilder/internal/catalog"
	"promptbuilder/internal/llm"
	llmclient "promptbuilder/internal/llmClient"
	"promptbuilder/internal/tester"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type outcomes struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) ObserveOutcome(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, op+":"+outcome)
}

func unavailable() error {
	return &llmclient.APIError{Provider: "gemini", Code: 503, Status: "UNAVAILABLE", Message: "The model is overloaded."}
}

func TestIsRetryableAvailability(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &llmclient.APIError{Code: 503}, true},
		{"status", &llmclient.APIError{Code: 500, Status: "UNAVAILABLE"}, true},
		{"message", &llmclient.APIError{Code: 500, Message: "Model Overloaded"}, true},
		{"wrapped permanent", llmclient.NewPermanentError(&llmclient.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "bad"}), false},
		{"plain message", errors.New("service temporarily unavailable"), true},
		{"plain other", errors.New("connection refused"), false},
		{"timeout", fmt.Errorf("x: %w", llmclient.ErrTimeout), true},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tester.Eq(t, IsRetryableAvailability(tc.err), tc.want)
		})
	}
}

func TestRefinePrimarySuccess(t *testing.T) {
	primary := llmclient.NewFakeClient(DefaultPrimaryModel, llmclient.FakeReply{Text: "  A vivid scene.  "})
	fallback := llmclient.NewFakeClient(DefaultFallbackModel)
	rec := &outcomes{}
	r := NewRefiner(primary, fallback, WithRecorder(rec))

	res, err := r.Refine(context.Background(), "Keep the existing hair.")
	require.NoError(t, err)
	require.Equal(t, "A vivid scene.", res.Text)
	require.Equal(t, DefaultPrimaryModel, res.ModelUsed)
	require.Empty(t, res.Advisory)
	require.NotEmpty(t, res.RequestID)
	require.Equal(t, 0, fallback.Calls())
	require.Equal(t, Instruction("Keep the existing hair."), primary.Prompts()[0])
	require.Contains(t, primary.Prompts()[0], `Concepts: "Keep the existing hair."`)
	require.Equal(t, []string{"refine:primary"}, rec.seen)
}

func TestRefineFallsBackOnceOn503(t *testing.T) {
	primary := llmclient.NewFakeClient(DefaultPrimaryModel, llmclient.FakeReply{Err: unavailable()})
	fallback := llmclient.NewFakeClient(DefaultFallbackModel, llmclient.FakeReply{Text: "fallback text"})
	r := NewRefiner(primary, fallback)

	res, err := r.Refine(context.Background(), "draft")
	require.NoError(t, err)
	require.Equal(t, "fallback text", res.Text)
	require.Equal(t, DefaultFallbackModel, res.ModelUsed)
	require.Equal(t, "Primary model unavailable. Used gemini-1.5-flash instead.", res.Advisory)
	require.Equal(t, 1, primary.Calls())
	require.Equal(t, 1, fallback.Calls())
}

func TestRefineNoFallbackOnInvalidArgument(t *testing.T) {
	bad := llmclient.NewPermanentError(&llmclient.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid"})
	primary := llmclient.NewFakeClient(DefaultPrimaryModel, llmclient.FakeReply{Err: bad})
	fallback := llmclient.NewFakeClient(DefaultFallbackModel)
	r := NewRefiner(primary, fallback)

	_, err := r.Refine(context.Background(), "draft")
	require.Error(t, err)
	require.Contains(t, err.Error(), "API key not valid")
	require.Equal(t, 0, fallback.Calls())
}

func TestRefineFallbackFailureIsFinal(t *testing.T) {
	second := errors.New("quota exhausted")
	primary := llmclient.NewFakeClient(DefaultPrimaryModel, llmclient.FakeReply{Err: unavailable()})
	fallback := llmclient.NewFakeClient(DefaultFallbackModel, llmclient.FakeReply{Err: second})
	rec := &outcomes{}
	r := NewRefiner(primary, fallback, WithRecorder(rec))

	_, err := r.Refine(context.Background(), "draft")
	require.ErrorIs(t, err, second)
	require.Equal(t, 1, fallback.Calls())
	require.Equal(t, []string{"refine:failed"}, rec.seen)
}

func TestRefineGuards(t *testing.T) {
	_, err := NewRefiner(nil, nil).Refine(context.Background(), "x")
	require.ErrorIs(t, err, ErrDisabled)

	r := NewRefiner(llmclient.NewFakeClient("m"), nil)
	_, err = r.Refine(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyPrompt)
}

type gatedClient struct {
	*llmclient.FakeClient
	entered chan struct{}
	release chan struct{}
}

func (g *gatedClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	close(g.entered)
	<-g.release
	return g.FakeClient.GenerateText(ctx, prompt)
}

func TestRefineRejectsConcurrentCall(t *testing.T) {
	gate := &gatedClient{
		FakeClient: llmclient.NewFakeClient("m", llmclient.FakeReply{Text: "done"}),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	r := NewRefiner(gate, nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.Refine(context.Background(), "first")
		done <- err
	}()
	<-gate.entered
	require.True(t, r.Busy())

	_, err := r.Refine(context.Background(), "second")
	require.ErrorIs(t, err, ErrInFlight)

	close(gate.release)
	require.NoError(t, <-done)
	require.False(t, r.Busy())
}

type slowClient struct{ model string }

func (s slowClient) Name() string  { return "slow:" + s.model }
func (s slowClient) Model() string { return s.model }
func (s slowClient) Close() error  { return nil }
func (s slowClient) GenerateText(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}
func (s slowClient) GenerateJSON(ctx context.Context, _ llmclient.JSONRequest) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRefineTimeoutFallsBack(t *testing.T) {
	primary := llm.Wrap(slowClient{model: DefaultPrimaryModel}, llm.WithTimeout(5*time.Millisecond))
	fallback := llmclient.NewFakeClient(DefaultFallbackModel, llmclient.FakeReply{Text: "quick"})
	res, err := NewRefiner(primary, fallback).Refine(context.Background(), "draft")
	require.NoError(t, err)
	require.Equal(t, DefaultFallbackModel, res.ModelUsed)
	require.NotEmpty(t, res.Advisory)
}

func analysisJSON(t *testing.T, cat *catalog.Catalog) json.RawMessage {
	t.Helper()
	doc := map[string]any{}
	for _, id := range cat.IDs() {
		doc[id] = map[string]any{"label": id + " label", "prompt_text": id + " text", "tags": []string{"a", "b"}}
	}
	doc["extra"] = map[string]any{"label": "x", "prompt_text": "y", "tags": []string{}}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func TestAnalyzeValidatesAndFallsBack(t *testing.T) {
	cat := catalog.Default()
	primary := llmclient.NewFakeClient(DefaultPrimaryModel, llmclient.FakeReply{Err: unavailable()})
	fallback := llmclient.NewFakeClient(DefaultFallbackModel, llmclient.FakeReply{JSON: analysisJSON(t, cat)})
	a, err := NewAnalyzer(cat, primary, fallback)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), []byte{1, 2, 3}, "image/png")
	require.NoError(t, err)
	require.Equal(t, DefaultFallbackModel, res.ModelUsed)
	require.NotEmpty(t, res.Advisory)
	require.Len(t, res.Items, cat.Len())
	require.Equal(t, "hair text", res.Items["hair"].PromptText)

	draft := res.Items["hair"].Draft("hair")
	require.Equal(t, "hair label", draft.Label)
	require.Empty(t, draft.ID)
	require.Nil(t, draft.Order)
	require.Contains(t, primary.Prompts()[0], "`scene`")
}

func TestAnalyzeRejectsSchemaMismatch(t *testing.T) {
	cat := catalog.Default()
	bad := json.RawMessage(`{"hair":{"label":"Bob","tags":"not-an-array"}}`)
	primary := llmclient.NewFakeClient(DefaultPrimaryModel, llmclient.FakeReply{JSON: bad})
	fallback := llmclient.NewFakeClient(DefaultFallbackModel)
	a, err := NewAnalyzer(cat, primary, fallback)
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), []byte{1}, "image/jpeg")
	require.ErrorIs(t, err, ErrInvalidAnalysis)
	require.Equal(t, 0, fallback.Calls())
}

func TestAnalyzeInputChecks(t *testing.T) {
	a, err := NewAnalyzer(catalog.Default(), llmclient.NewFakeClient("m"), nil)
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), nil, "image/png")
	require.ErrorIs(t, err, ErrNoImage)
	_, err = a.Analyze(context.Background(), []byte{1}, "text/plain")
	require.ErrorIs(t, err, ErrUnsupportedImage)

	disabled, err := NewAnalyzer(catalog.Default(), nil, nil)
	require.NoError(t, err)
	_, err = disabled.Analyze(context.Background(), []byte{1}, "image/png")
	require.ErrorIs(t, err, ErrDisabled)
}

func TestAnalysisSchemaHints(t *testing.T) {
	schema := AnalysisSchema(catalog.Default())
	props := schema["properties"].(map[string]any)
	scene := props["scene"].(map[string]any)
	require.Contains(t, scene["description"], "Do NOT describe lighting")
	hair := props["hair"].(map[string]any)
	require.Equal(t, "Analysis for the Hair category.", hair["description"])
}
