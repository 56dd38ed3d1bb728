package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	llmclient "promptbuilder/internal/llmClient"
	"promptbuilder/internal/tester"
)

type blockingClient struct{ model string }

func (b *blockingClient) Name() string  { return "block:" + b.model }
func (b *blockingClient) Model() string { return b.model }
func (b *blockingClient) Close() error  { return nil }
func (b *blockingClient) GenerateText(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}
func (b *blockingClient) GenerateJSON(ctx context.Context, _ llmclient.JSONRequest) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	errs  int
}

func (r *recordingObserver) ObserveLLMCall(model, phase string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, model+"/"+phase)
	if err != nil {
		r.errs++
	}
}

func TestWrapOrder(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next llmclient.Client) llmclient.Client {
			order = append(order, name)
			return next
		}
	}
	Wrap(llmclient.NewFakeClient("m"), mk("A"), mk("B"))
	tester.Eq(t, order, []string{"B", "A"})
}

func TestWithTimeoutMapsDeadline(t *testing.T) {
	c := Wrap(&blockingClient{model: "slow"}, WithTimeout(10*time.Millisecond))
	_, err := c.GenerateText(context.Background(), "x")
	tester.ErrIs(t, err, llmclient.ErrTimeout)
	tester.ErrIs(t, err, context.DeadlineExceeded)

	_, err = c.GenerateJSON(context.Background(), llmclient.JSONRequest{})
	tester.ErrIs(t, err, llmclient.ErrTimeout)
}

func TestWithTimeoutKeepsParentCancellation(t *testing.T) {
	c := Wrap(&blockingClient{model: "slow"}, WithTimeout(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GenerateText(ctx, "x")
	tester.ErrIs(t, err, context.Canceled)
	tester.False(t, errors.Is(err, llmclient.ErrTimeout))
}

func TestWithLoggingAndMetrics(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	obs := &recordingObserver{}
	boom := errors.New("boom")
	fake := llmclient.NewFakeClient("m", llmclient.FakeReply{Text: "ok"}, llmclient.FakeReply{Err: boom})
	c := Wrap(fake, WithLogging(zap.New(core)), WithMetrics(obs))

	ctx := WithPhase(context.Background(), "refine")
	text, err := c.GenerateText(ctx, "hello")
	tester.NoErr(t, err)
	tester.Eq(t, text, "ok")
	_, err = c.GenerateText(ctx, "hello")
	tester.ErrIs(t, err, boom)

	tester.Eq(t, obs.calls, []string{"m/refine", "m/refine"})
	tester.Eq(t, obs.errs, 1)
	tester.Eq(t, logs.FilterMessage("llm error").Len(), 1)
	tester.Eq(t, logs.FilterMessage("llm request").Len(), 2)
	tester.Eq(t, c.Name(), "fake:m")
}

func TestPhaseDefault(t *testing.T) {
	tester.Eq(t, PhaseFrom(context.Background()), "unknown")
}
