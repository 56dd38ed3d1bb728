package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIClient refines text through chat completions. Schema-constrained
// image analysis is only offered by the Gemini client.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openai: model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Fallback between models is decided by the caller, not the SDK.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

func (o *OpenAIClient) Name() string  { return "openai:" + o.model }
func (o *OpenAIClient) Model() string { return o.model }
func (o *OpenAIClient) Close() error  { return nil }

func (o *OpenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:    openai.ChatModel(o.model),
	})
	if err != nil {
		return "", o.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (o *OpenAIClient) GenerateJSON(context.Context, JSONRequest) (json.RawMessage, error) {
	return nil, NewPermanentError(fmt.Errorf("%s: %w", o.Name(), ErrUnsupported))
}

func (o *OpenAIClient) wrap(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classify(&APIError{
			Provider: "openai",
			Code:     apiErr.StatusCode,
			Status:   apiErr.Code,
			Message:  apiErr.Message,
			Err:      err,
		})
	}
	return err
}
