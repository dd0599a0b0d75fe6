package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", Validation("projectIdea", "too short"), http.StatusBadRequest, CodeValidation},
		{"unauthorized", &UnauthorizedError{}, http.StatusUnauthorized, CodeUnauthorized},
		{"not found", fmt.Errorf("load: %w", ErrSessionNotFound), http.StatusNotFound, CodeSessionNotFound},
		{"closed", ErrSessionClosed, http.StatusConflict, CodeSessionClosed},
		{"empty", &EmptyResultError{Stage: "review"}, http.StatusUnprocessableEntity, CodeEmptyResult},
		{"invocation", &ModelInvocationError{Attempted: []string{"a", "b"}}, http.StatusBadGateway, CodeModelInvocation},
		{"malformed", fmt.Errorf("decode: %w", ErrMalformedOutput), http.StatusBadGateway, CodeMalformedOutput},
		{"other", errors.New("disk full"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)

			back := FromResponse(status, body)
			reStatus, reBody := Classify(back)
			if tt.code == CodeInternal {
				var se *ServerError
				assert.True(t, errors.As(back, &se))
				return
			}
			assert.Equal(t, status, reStatus)
			assert.Equal(t, body.Code, reBody.Code)
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	_, body := Classify(errors.New("open /var/lib/db: permission denied"))
	assert.Equal(t, "internal server error", body.Error)
}

func TestAttemptedModelsSurvive(t *testing.T) {
	_, body := Classify(&ModelInvocationError{Attempted: []string{"llama3.2:3b", "phi3.5:3.8b"}, Last: context.DeadlineExceeded})
	back := FromResponse(http.StatusBadGateway, body)

	var inv *ModelInvocationError
	assert.True(t, errors.As(back, &inv))
	assert.Equal(t, []string{"llama3.2:3b", "phi3.5:3.8b"}, inv.Attempted)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&EmptyResultError{}))
	assert.True(t, Retryable(&NetworkOrTimeoutError{Op: "POST /generate-dual", Timeout: true}))
	assert.True(t, Retryable(&ServerError{Status: 503}))
	assert.False(t, Retryable(&ServerError{Status: 404}))
	assert.False(t, Retryable(Validation("answers", "at least one answer is required")))
	assert.False(t, Retryable(&UnauthorizedError{}))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "answers: at least one answer is required", Message(Validation("answers", "at least one answer is required")))
	assert.Contains(t, Message(&ModelInvocationError{Attempted: []string{"a", "b"}}), "a, b")
	assert.Contains(t, Message(&NetworkOrTimeoutError{Timeout: true}), "may still finish")
	assert.Contains(t, Message(ErrSessionClosed), "start a new one")
	assert.Equal(t, "bad input", Message(&ServerError{Status: 400, Message: "bad input"}))
}
