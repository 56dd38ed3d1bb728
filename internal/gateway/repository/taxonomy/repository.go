package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	model "promptbuilder/internal/taxonomy"
)

// Store loads and saves the whole taxonomy. Saves are wholesale: the item
// set written replaces whatever the store held.
type Store interface {
	Load(ctx context.Context) (model.Data, error)
	Save(ctx context.Context, items []model.Item) error
}

// ErrMalformedResponse means the store answered with something that is not
// the expected JSON envelope.
var ErrMalformedResponse = errors.New("taxonomy store: malformed response")

// RemoteError carries a rejection reported by the store itself.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// UnreachableError is a transport failure before the store answered. URL
// carries no query, so the API key stays out of messages and logs.
type UnreachableError struct {
	Method string
	URL    string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("taxonomy store %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

func unreachable(method string, u *url.URL, err error) *UnreachableError {
	// *url.Error repeats the full request URL, key included.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	target := ""
	if u != nil {
		clean := *u
		clean.RawQuery = ""
		clean.User = nil
		target = clean.String()
	}
	return &UnreachableError{Method: method, URL: target, Err: err}
}

// Describe renders err for a person: remote rejections verbatim, transport
// failures with their cause, malformed payloads as a generic message.
func Describe(err error) string {
	var (
		remote *RemoteError
		down   *UnreachableError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &remote):
		return remote.Message
	case errors.As(err, &down):
		return fmt.Sprintf("Failed to reach the taxonomy store: %v", down.Err)
	case errors.Is(err, ErrMalformedResponse):
		return "The taxonomy store returned an unexpected response."
	}
	return fmt.Sprintf("Failed to reach the taxonomy store: %v", err)
}
