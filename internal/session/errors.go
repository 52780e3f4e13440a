package session

import "errors"

// modelNotFoundError is returned when an id is not among the bundled assets.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error for a model id missing from the asset list.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing runtime (e.g. llama.cpp not
// compiled in) so callers can report "unavailable" instead of a generic failure.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// ErrNoModelAssets is the critical startup failure: nothing to load at all.
var ErrNoModelAssets = errors.New("no usable model asset found")

// ErrClosed is returned by a session or registry after Close.
var ErrClosed = errors.New("session closed")

// ErrVisionDisabled is returned when an image is passed to a text-only session.
var ErrVisionDisabled = errors.New("vision input not enabled for this session")
