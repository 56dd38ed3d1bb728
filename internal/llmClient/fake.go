package llmclient

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeReply is one scripted answer.
type FakeReply struct {
	Text string
	JSON json.RawMessage
	Err  error
}

// FakeClient replays scripted replies in order and repeats the last one
// once the script runs out. With no script it echoes the prompt.
type FakeClient struct {
	model string

	mu      sync.Mutex
	script  []FakeReply
	calls   int
	prompts []string
}

func NewFakeClient(model string, script ...FakeReply) *FakeClient {
	return &FakeClient{model: model, script: script}
}

func (f *FakeClient) Name() string  { return "fake:" + f.model }
func (f *FakeClient) Model() string { return f.model }
func (f *FakeClient) Close() error  { return nil }

// Calls reports how many requests were made.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Prompts returns the prompts received so far.
func (f *FakeClient) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *FakeClient) next(prompt string) (FakeReply, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if len(f.script) == 0 {
		return FakeReply{}, false
	}
	i := f.calls - 1
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i], true
}

func (f *FakeClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r, ok := f.next(prompt)
	if !ok {
		return prompt, nil
	}
	if r.Err != nil {
		return "", r.Err
	}
	if r.Text == "" {
		return "", ErrEmptyResponse
	}
	return r.Text, nil
}

func (f *FakeClient) GenerateJSON(ctx context.Context, req JSONRequest) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := f.next(req.Prompt)
	if !ok {
		return json.RawMessage(`{}`), nil
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if len(r.JSON) == 0 {
		return nil, ErrEmptyResponse
	}
	return r.JSON, nil
}
