package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidJSON   = errors.New("invalid json from LLM")
	ErrEmptyResponse = errors.New("empty response from LLM")
	ErrUnsupported   = errors.New("operation not supported by provider")
	// ErrTimeout marks a call that produced no answer within its deadline.
	ErrTimeout = errors.New("llm request timed out")
)

// Client is one provider bound to one model. Cross-cutting concerns
// (timeouts, logging, metrics) are applied via middleware in internal/llm.
type Client interface {
	Name() string
	Model() string
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, req JSONRequest) (json.RawMessage, error)
	Close() error
}

// JSONRequest asks for output constrained by Schema. Image is optional.
type JSONRequest struct {
	Prompt        string
	Image         []byte
	ImageMIMEType string
	Schema        map[string]any
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// APIError is a provider error normalized to code, status and message.
type APIError struct {
	Provider string
	Code     int
	Status   string
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	switch {
	case e.Status != "":
		return fmt.Sprintf("%s: %d %s: %s", e.Provider, e.Code, e.Status, e.Message)
	case e.Code != 0:
		return fmt.Sprintf("%s: %d: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// AsAPIError finds an *APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// classify wraps client errors that cannot succeed on a second attempt.
func classify(apiErr *APIError) error {
	switch {
	case apiErr.Code == 408 || apiErr.Code == 429:
		return apiErr
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return NewPermanentError(apiErr)
	}
	return apiErr
}
