package ocpi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// internalMessage replaces the message of any error that is not an *Error so
// that causes never reach a partner.
const internalMessage = "internal server error"

// Error is the gateway's typed error. Code and the message pieces are
// serialized into the envelope; Err is the internal cause and is only logged.
type Error struct {
	// Code is the protocol status code.
	Code StatusCode

	// HTTPStatus overrides the status derived from Code when non-zero.
	HTTPStatus int

	// Message is the human-readable message.
	Message string

	// Detail is caller-supplied context appended to Message.
	Detail string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d: %s: %v", e.Code, e.StatusMessage(), e.Err)
	}
	return fmt.Sprintf("%d: %s", e.Code, e.StatusMessage())
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusMessage is the text exposed to the partner.
func (e *Error) StatusMessage() string {
	if e.Detail != "" {
		return e.Message + " - " + e.Detail
	}
	return e.Message
}

// HTTPStatusCode returns the HTTP status to send with this error.
func (e *Error) HTTPStatusCode() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	if e.Code.IsClientError() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// WithDetail sets the caller-supplied context.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithHTTPStatus sets a specific HTTP status code.
func (e *Error) WithHTTPStatus(code int) *Error {
	e.HTTPStatus = code
	return e
}

// Wrap records the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// NewError creates a new error.
func NewError(code StatusCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrInvalidParameter creates an invalid-parameter error.
func ErrInvalidParameter(message string) *Error {
	return NewError(StatusInvalidParameters, message)
}

// ErrMissingParameter reports a missing query, body or path parameter.
func ErrMissingParameter(name string) *Error {
	return NewError(StatusInvalidParameters, "missing parameter").WithDetail(name)
}

// ErrUnauthorized creates an authentication failure.
func ErrUnauthorized(message string) *Error {
	return NewError(StatusClientError, message).WithHTTPStatus(http.StatusUnauthorized)
}

// ErrNotFound reports an unknown record inside a known resource.
func ErrNotFound(message string) *Error {
	return NewError(StatusClientError, message).WithHTTPStatus(http.StatusNotFound)
}

// ErrMethodNotSupported reports a method/sub-resource combination an endpoint does not serve.
func ErrMethodNotSupported(method, path string) *Error {
	return NewError(StatusClientError, "method not supported").
		WithDetail(method + " " + path).
		WithHTTPStatus(http.StatusMethodNotAllowed)
}

// ErrNotImplemented reports a path the gateway has no handler for.
func ErrNotImplemented(message string) *Error {
	return NewError(StatusServerError, message).WithHTTPStatus(http.StatusNotImplemented)
}

// ErrServer creates a generic server error.
func ErrServer(message string) *Error {
	return NewError(StatusServerError, message)
}

// AsError converts any error to an *Error. Errors that are not already typed
// become a generic server error whose message hides the cause.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrServer("request timed out").WithHTTPStatus(http.StatusGatewayTimeout).Wrap(err)
	}
	return ErrServer(internalMessage).Wrap(err)
}

// ErrUnknownResource reports an identifier no endpoint is registered under.
func ErrUnknownResource(identifier string) *Error {
	return ErrNotImplemented("not implemented").WithDetail(identifier)
}
