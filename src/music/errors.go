package music

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedSource is returned when no provider handles an identifier.
	ErrUnsupportedSource = errors.New("unsupported source")
	// ErrNotFound is returned when an archive key or URL has no matching record.
	ErrNotFound = errors.New("not found")
	// ErrRetrieveIncomplete is returned when a retrieval finished without a usable local file.
	ErrRetrieveIncomplete = errors.New("retrieval finished without a usable file")
	// ErrAlreadyEnqueued guards the enqueue-once rule of a provider.
	ErrAlreadyEnqueued = errors.New("track already enqueued for this request")
	// ErrCancelled is returned to a waiting caller whose fetch was dropped before it ran.
	ErrCancelled = errors.New("request cancelled")
)

// FetchReason classifies why a track could not be fetched.
type FetchReason string

const (
	FetchNotFound  FetchReason = "not_found"
	FetchTooLarge  FetchReason = "too_large"
	FetchRetrieval FetchReason = "retrieval"
)

// FetchError is reported by CheckFetchable and Fetch.
type FetchError struct {
	Reason FetchReason
	Detail string
	Err    error
}

// NewFetchError builds a FetchError wrapping err (which may be nil).
func NewFetchError(reason FetchReason, detail string, err error) *FetchError {
	return &FetchError{Reason: reason, Detail: detail, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch failed (%s): %s: %v", e.Reason, e.Detail, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s): %s", e.Reason, e.Detail)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err carries a FetchError and returns it.
func IsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
