package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint (tests).
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiClient is a thin wrapper around the official genai client.
// It only focuses on the API call itself.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("gemini: model is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: cfg.Model}, nil
}

func (g *GeminiClient) Name() string  { return "gemini:" + g.model }
func (g *GeminiClient) Model() string { return g.model }
func (g *GeminiClient) Close() error  { return nil }

func (g *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		nil,
	)
	if err != nil {
		return "", g.wrap(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GenerateJSON sends the prompt plus an optional inline image and asks for
// application/json constrained by the request schema.
func (g *GeminiClient) GenerateJSON(ctx context.Context, req JSONRequest) (json.RawMessage, error) {
	parts := []*genai.Part{}
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, req.ImageMIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if req.Schema != nil {
		cfg.ResponseJsonSchema = req.Schema
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		cfg,
	)
	if err != nil {
		return nil, g.wrap(err)
	}
	txt := strings.TrimSpace(resp.Text())
	if txt == "" {
		return nil, ErrEmptyResponse
	}
	if !json.Valid([]byte(txt)) {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(txt), nil
}

func (g *GeminiClient) wrap(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classify(&APIError{
			Provider: "gemini",
			Code:     apiErr.Code,
			Status:   apiErr.Status,
			Message:  apiErr.Message,
			Err:      err,
		})
	}
	return err
}
