package enroll

import (
	"errors"
	"fmt"
)

// AuthError indicates the login handshake with the identity provider did
// not yield an access token. Possibly transient (provider hiccup), so a
// fresh attempt may help.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ResolutionError indicates the locator does not reference a lesson. The
// input itself is broken, so retrying can never succeed.
type ResolutionError struct {
	Locator string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no lesson id found in locator %q", e.Locator)
}

// FetchError indicates the lesson metadata could not be retrieved or
// decoded.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("lesson fetch failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("lesson fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MetadataError indicates the lesson payload was retrieved but its
// enrollment opening time is absent or unparsable. Without it there is no
// deadline to aim at, so the attempt is aborted.
type MetadataError struct {
	Field string
	Err   error
}

func (e *MetadataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lesson metadata field %q is invalid: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("lesson metadata field %q is missing", e.Field)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// SubmitError indicates the registration request itself failed in
// transport, leaving the outcome ambiguous. Reported as a failure and
// never retried automatically: the request may have reached the provider.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("enrollment submit failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a fresh attempt of the whole job could
// plausibly succeed. The retry decision is a pure function of the error
// kind: auth, fetch and metadata failures may be transient; a malformed
// locator never heals; an ambiguous submit must not be re-fired.
func Retryable(err error) bool {
	var (
		authErr *AuthError
		fetch   *FetchError
		meta    *MetadataError
	)

	switch {
	case errors.As(err, &authErr):
		return true
	case errors.As(err, &fetch):
		return true
	case errors.As(err, &meta):
		return true
	default:
		return false
	}
}
