package daemon

import (
	"errors"
	"net/http"
)

var (
	// ErrNoCamera is returned by camera operations when no capture source is configured.
	ErrNoCamera = errors.New("camera not configured")
	// ErrCameraStopped is returned by Capture while the camera is not running.
	ErrCameraStopped = errors.New("camera not running")
	// ErrNoPhoto is returned when an operation needs a captured photo and there is none.
	ErrNoPhoto = errors.New("no captured photo")
)

// requestError is a client mistake; it carries its own HTTP status so the
// API layer does not need to know about it.
type requestError struct {
	msg  string
	code int
}

func (e requestError) Error() string   { return e.msg }
func (e requestError) StatusCode() int { return e.code }

func badRequest(msg string) error { return requestError{msg: msg, code: http.StatusBadRequest} }

// IsBadRequest reports whether err was caused by invalid caller input.
func IsBadRequest(err error) bool {
	var re requestError
	return errors.As(err, &re) && re.code == http.StatusBadRequest
}
