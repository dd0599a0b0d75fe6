package apperr

import (
	"errors"
	"net/http"
)

// Wire codes carried in the "code" field of error responses.
const (
	CodeValidation      = "validation_error"
	CodeUnauthorized    = "unauthorized"
	CodeSessionNotFound = "session_not_found"
	CodeSessionClosed   = "session_closed"
	CodeEmptyResult     = "empty_result"
	CodeModelInvocation = "model_invocation_failed"
	CodeMalformedOutput = "malformed_output"
	CodeInternal        = "internal_error"
)

// Response is the JSON body of every error reply.
type Response struct {
	Error           string   `json:"error"`
	Code            string   `json:"code"`
	AttemptedModels []string `json:"attemptedModels,omitempty"`
}

// Classify maps err to an HTTP status and wire body.
func Classify(err error) (int, Response) {
	var (
		validation *ValidationError
		empty      *EmptyResultError
		invoke     *ModelInvocationError
		unauth     *UnauthorizedError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, Response{Error: validation.Error(), Code: CodeValidation}
	case errors.As(err, &unauth):
		return http.StatusUnauthorized, Response{Error: unauth.Error(), Code: CodeUnauthorized}
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, Response{Error: ErrSessionNotFound.Error(), Code: CodeSessionNotFound}
	case errors.Is(err, ErrSessionClosed):
		return http.StatusConflict, Response{Error: ErrSessionClosed.Error(), Code: CodeSessionClosed}
	case errors.As(err, &empty):
		return http.StatusUnprocessableEntity, Response{Error: empty.Error(), Code: CodeEmptyResult}
	case errors.As(err, &invoke):
		return http.StatusBadGateway, Response{Error: invoke.Error(), Code: CodeModelInvocation, AttemptedModels: invoke.Attempted}
	case errors.Is(err, ErrMalformedOutput):
		return http.StatusBadGateway, Response{Error: err.Error(), Code: CodeMalformedOutput}
	}
	return http.StatusInternalServerError, Response{Error: "internal server error", Code: CodeInternal}
}

// FromResponse rebuilds a typed error from a decoded error reply.
func FromResponse(status int, body Response) error {
	switch body.Code {
	case CodeValidation:
		return &ValidationError{Message: body.Error}
	case CodeUnauthorized:
		return &UnauthorizedError{Message: body.Error}
	case CodeSessionNotFound:
		return ErrSessionNotFound
	case CodeSessionClosed:
		return ErrSessionClosed
	case CodeEmptyResult:
		return &EmptyResultError{}
	case CodeModelInvocation:
		return &ModelInvocationError{Attempted: body.AttemptedModels, Last: errors.New(body.Error)}
	case CodeMalformedOutput:
		return ErrMalformedOutput
	}
	if status == http.StatusUnauthorized {
		return &UnauthorizedError{Message: body.Error}
	}
	return &ServerError{Status: status, Code: body.Code, Message: body.Error}
}
