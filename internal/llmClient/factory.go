package llmclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderFake   = "fake"
)

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Provider   string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// New builds a client for model using the configured provider.
func New(ctx context.Context, cfg ProviderConfig, model string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: model, BaseURL: cfg.BaseURL, HTTPClient: cfg.HTTPClient})
	case ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, Model: model, BaseURL: cfg.BaseURL, HTTPClient: cfg.HTTPClient})
	case ProviderFake:
		return NewFakeClient(model), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
