package reqlog

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Code is an error code that mirrors the http status codes. Handlers return errors created with it so that
// [ToStd] can render a structured response instead of a generic 500.
type Code int

const (
	CodeUnknown              Code = 0
	CodeBadRequest           Code = http.StatusBadRequest           // RFC 9110, 15.5.1
	CodeNotFound             Code = http.StatusNotFound             // RFC 9110, 15.5.5
	CodeMethodNotAllowed     Code = http.StatusMethodNotAllowed     // RFC 9110, 15.5.6
	CodeRequestEntityTooBig  Code = http.StatusRequestEntityTooLarge // RFC 9110, 15.5.14
	CodeUnsupportedMediaType Code = http.StatusUnsupportedMediaType // RFC 9110, 15.5.16

	CodeInternalServerError Code = http.StatusInternalServerError // RFC 9110, 15.6.1
	CodeBadGateway          Code = http.StatusBadGateway          // RFC 9110, 15.6.3
	CodeServiceUnavailable  Code = http.StatusServiceUnavailable  // RFC 9110, 15.6.4
)

// Error describes an http error.
type Error struct {
	code Code
	err  error
}

// NewError inits a new error given the error code.
func NewError(c Code, underlying error) *Error {
	return &Error{c, underlying}
}

func (e *Error) Code() Code    { return e.code }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Error() string {
	status := http.StatusText(int(e.Code()))
	if status == "" {
		status = "Unknown"
	}

	return fmt.Sprintf("%s: %s", status, e.err.Error())
}

// CodeOf returns the error's status code if it is or wraps an [*Error] and
// [CodeUnknown] otherwise.
func CodeOf(err error) Code {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Code()
	}
	return CodeUnknown
}

// ErrHandlerClosed is returned when records are handed to a handler after it was closed.
var ErrHandlerClosed = errors.New("reqlog: handler is closed")

// DeliveryError reports that a batch could not be delivered to the sink. It is the only error class that the
// batching handler lets escape. The records of the failed batch are not requeued.
type DeliveryError struct {
	LogGroup  string
	LogStream string
	Records   int
	err       error
}

func (e *DeliveryError) Unwrap() error { return e.err }
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("reqlog: failed to deliver %d record(s) to %s:%s: %s", e.Records, e.LogGroup, e.LogStream, e.err)
}

// IsDeliveryError reports whether err is or wraps a [*DeliveryError].
func IsDeliveryError(err error) bool {
	var derr *DeliveryError
	return errors.As(err, &derr)
}
