package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidArgument marks programming errors such as an unknown sort key.
var ErrInvalidArgument = errors.New("invalid argument")

// NetworkError represents a transport failure talking to the gateway
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError represents a response with success:false or a non-2xx status.
// Message is shown to the user verbatim.
type BackendError struct {
	Op      string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: backend error (%d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: backend error: %s", e.Op, e.Message)
}

// ValidationError blocks an action before any request is issued
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation is a shorthand for building a *ValidationError.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Backend builds a *BackendError, falling back to the status text when the
// backend gave no message.
func Backend(op string, status int, message string) error {
	if message == "" {
		if status != 0 {
			message = http.StatusText(status)
		} else {
			message = "request failed"
		}
	}
	return &BackendError{Op: op, Status: status, Message: message}
}

// Network wraps a transport error.
func Network(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// InvalidArgument wraps ErrInvalidArgument with a formatted description.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// UserMessage returns the text to show for err. Backend messages are passed
// through unchanged.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return fmt.Sprintf("could not reach the server: %v", ne.Err)
	}
	return err.Error()
}
