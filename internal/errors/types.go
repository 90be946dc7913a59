package errors

import (
	"errors"
	"fmt"
)

// ConfigurationError marks a problem that must stop the process before any
// experiment work starts, such as a missing API credential.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error (%s)", e.Field)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError for the named field.
func NewConfigurationError(field string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: err}
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// HTTPStatusError represents a non-success HTTP response from the completion
// endpoint. It is produced per attempt and wrapped by ModelUnavailableError
// once retries are exhausted.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// NewHTTPStatusError creates an HTTP status error.
func NewHTTPStatusError(statusCode int, status, body string) error {
	return &HTTPStatusError{
		StatusCode: statusCode,
		Status:     status,
		Body:       body,
	}
}

// ModelUnavailableError means every completion attempt against a model
// failed. It carries the attempt count and the last underlying error.
type ModelUnavailableError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable after %d attempts: %v", e.Model, e.Attempts, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Err
}

// IsModelUnavailable reports whether err is a ModelUnavailableError.
func IsModelUnavailable(err error) bool {
	var me *ModelUnavailableError
	return errors.As(err, &me)
}

// MalformedReflectionError means the critique model's response could not be
// decoded even after the repair pass. No revision instruction can be derived
// from it, so the enclosing reflective pass must fail.
type MalformedReflectionError struct {
	Model    string
	Primary  string // raw text of the first attempt
	Repaired string // raw text of the repair attempt, if one was made
	ParseErr error
}

func (e *MalformedReflectionError) Error() string {
	return fmt.Sprintf("reflection from %s unparseable after repair: %v", e.Model, e.ParseErr)
}

func (e *MalformedReflectionError) Unwrap() error {
	return e.ParseErr
}

// IsMalformedReflection reports whether err is a MalformedReflectionError.
func IsMalformedReflection(err error) bool {
	var me *MalformedReflectionError
	return errors.As(err, &me)
}
