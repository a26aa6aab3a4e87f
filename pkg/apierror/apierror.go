package apierror

import "fmt"

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`

	kind error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the error kind so callers can match with errors.Is.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.kind
}

// WithKind tags the error with a sentinel and returns it.
func (e *APIError) WithKind(kind error) *APIError {
	e.kind = kind
	return e
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Wrap builds an APIError of the given kind, keeping the underlying cause
// in Details.
func Wrap(kind error, code string, message string, status int, cause error) *APIError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return New(code, message, details, status).WithKind(kind)
}
