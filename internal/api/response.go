package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hanno79/Nexora-sub001/internal/apperr"
)

const maxBodyBytes = 4 << 20

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	code := apperr.CodeInternal
	switch status {
	case http.StatusBadRequest:
		code = apperr.CodeValidation
	case http.StatusUnauthorized:
		code = apperr.CodeUnauthorized
	}
	writeJSON(w, status, apperr.Response{Error: msg, Code: code})
}

// writeAppError maps a service error onto the wire. Unclassified errors are
// logged and reported as a generic 500.
func writeAppError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status, body := apperr.Classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "request_id", GetRequestID(r), "error", err)
	} else {
		logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

// detached returns a context that outlives the client connection so that an
// aborted request never cancels a running generation.
func detached(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
}
