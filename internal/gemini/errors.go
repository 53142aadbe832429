package gemini

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyResponse = errors.New("model returned no text")
	ErrParseFailure  = errors.New("model response is not a valid analysis")
	ErrRemoteFailure = errors.New("model request failed")
)

// RemoteError is a transport failure (StatusCode 0) or a non-2xx answer
// from the model service. It matches ErrRemoteFailure.
type RemoteError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model request failed: %v", e.Err)
	}
	return fmt.Sprintf("model request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteFailure
}
