package rpc

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"promptbuilder/internal/gateway/repository/snapshot"
	taxonomyrepo "promptbuilder/internal/gateway/repository/taxonomy"
	promptsvc "promptbuilder/internal/gateway/service/prompt"
	taxonomysvc "promptbuilder/internal/gateway/service/taxonomy"
	"promptbuilder/internal/gateway/settings"
	llmclient "promptbuilder/internal/llmClient"
	"promptbuilder/internal/prompt"
	"promptbuilder/internal/refine"
	"promptbuilder/internal/taxonomy"
)

var errTypeRequired = errors.New("type is required")

func unsupportedType(t string) error {
	return fmt.Errorf("unsupported type: %s", t)
}

var invalidArgument = []error{
	settings.ErrInvalid,
	taxonomy.ErrLabelRequired,
	taxonomy.ErrPromptTextRequired,
	taxonomy.ErrCategoryRequired,
	taxonomy.ErrInvalidDirection,
	taxonomysvc.ErrUnknownCategory,
	prompt.ErrNotRemovable,
	prompt.ErrUnknownCategory,
	prompt.ErrUnknownItem,
	prompt.ErrUnknownSegment,
	refine.ErrEmptyPrompt,
	refine.ErrNoImage,
	refine.ErrUnsupportedImage,
}

var notFound = []error{
	taxonomy.ErrItemNotFound,
	snapshot.ErrNotFound,
	promptsvc.ErrUnknownSession,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// toConnectError maps domain errors onto Connect codes. Store rejections
// keep their message; malformed store payloads get a generic one.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return err
	}
	var (
		remote *taxonomyrepo.RemoteError
		down   *taxonomyrepo.UnreachableError
	)
	switch {
	case errors.Is(err, settings.ErrUnconfigured), errors.Is(err, refine.ErrDisabled), errors.Is(err, taxonomysvc.ErrNotLoaded):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case isAny(err, invalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case isAny(err, notFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, refine.ErrInFlight), errors.Is(err, taxonomy.ErrSaveInProgress):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.As(err, &remote):
		return connect.NewError(connect.CodeUnavailable, errors.New(remote.Message))
	case errors.Is(err, taxonomyrepo.ErrMalformedResponse):
		return connect.NewError(connect.CodeInternal, errors.New(taxonomyrepo.Describe(err)))
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, llmclient.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.As(err, &down):
		return connect.NewError(connect.CodeUnavailable, errors.New(taxonomyrepo.Describe(down)))
	case refine.IsRetryableAvailability(err):
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
