package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyResult        = errors.New("upstream returned no rows")
	ErrCatalogMismatch    = errors.New("no rows matched the country catalog")
	ErrIndicatorNotCached = errors.New("indicator not present in cached table")
	ErrUnknownIndicator   = errors.New("unknown indicator")
	ErrInvalidYearRange   = errors.New("invalid year range")
	ErrSessionNotFound    = errors.New("session not found")
)

// FetchError reports a failed refresh of upstream data: the API was unreachable,
// answered with a malformed payload, or returned an empty result set.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
