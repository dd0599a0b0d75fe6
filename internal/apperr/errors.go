// Package apperr defines the error taxonomy shared by the orchestration
// server and the workflow client.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hanno79/Nexora-sub001/internal/models"
)

var (
	ErrSessionNotFound = errors.New("guided session not found")
	ErrSessionClosed   = errors.New("guided session is no longer active")
	ErrMalformedOutput = errors.New("model returned malformed output")
)

// ValidationError reports malformed input. It is always detected before any
// model is invoked.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ModelInvocationError is raised only after the whole fallback chain for a
// role has been exhausted.
type ModelInvocationError struct {
	Role      models.Role
	Attempted []string
	Last      error
}

func (e *ModelInvocationError) Error() string {
	msg := fmt.Sprintf("all models failed for %s role (tried: %s)", e.Role, strings.Join(e.Attempted, ", "))
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *ModelInvocationError) Unwrap() error { return e.Last }

// EmptyResultError means a pipeline produced blank content.
type EmptyResultError struct {
	Stage string
}

func (e *EmptyResultError) Error() string {
	if e.Stage == "" {
		return "generation returned empty content"
	}
	return e.Stage + " returned empty content"
}

// NetworkOrTimeoutError means the client stopped waiting. The server-side job
// may still complete.
type NetworkOrTimeoutError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkOrTimeoutError) Error() string {
	if e.Timeout {
		return e.Op + ": timed out waiting for server"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkOrTimeoutError) Unwrap() error { return e.Err }

// UnauthorizedError requires the user to authenticate again.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.Message
}

// ServerError is a generic non-2xx response that fits no other category.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Retryable reports whether resubmitting the same input may succeed.
func Retryable(err error) bool {
	var (
		empty   *EmptyResultError
		invoke  *ModelInvocationError
		network *NetworkOrTimeoutError
		server  *ServerError
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &invoke), errors.As(err, &network):
		return true
	case errors.Is(err, ErrMalformedOutput):
		return true
	case errors.As(err, &server):
		return server.Status >= 500
	}
	return false
}

// Message returns a user-facing description of err.
func Message(err error) string {
	var (
		validation *ValidationError
		empty      *EmptyResultError
		invoke     *ModelInvocationError
		network    *NetworkOrTimeoutError
		unauth     *UnauthorizedError
		server     *ServerError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &empty):
		return "The AI returned no content. Please try again."
	case errors.As(err, &invoke):
		return fmt.Sprintf("All configured models failed (%s). Please try again or change your model settings.",
			strings.Join(invoke.Attempted, ", "))
	case errors.As(err, &network):
		if network.Timeout {
			return "The request timed out. The generation may still finish on the server; reload to check."
		}
		return "Could not reach the server. Please check your connection and retry."
	case errors.As(err, &unauth):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionClosed):
		return "This guided session has ended. Please start a new one."
	case errors.Is(err, ErrMalformedOutput):
		return "The AI response could not be understood. Please try again."
	case errors.As(err, &server):
		if server.Status >= 500 {
			return "The server failed to complete the request. Please try again."
		}
		return server.Message
	}
	return err.Error()
}
