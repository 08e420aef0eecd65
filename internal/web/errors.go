package web

// errors.go maps failures of the batch endpoint to HTTP responses.
//
// Every error response has the same JSON shape with a stable machine code.
// The technical error is logged with the request id; the client only sees
// the message chosen here.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/outletsync/internal/core"
	"github.com/JonMunkholm/outletsync/internal/feed"
	"github.com/JonMunkholm/outletsync/internal/logging"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest    = "REQ001"
	CodeFeedInvalid   = "FEED001"
	CodeFeedTooLarge  = "FEED002"
	CodeStoreNotFound = "STORE001"
	CodeBusy          = "BATCH001"
	CodeTimeout       = "BATCH002"
	CodeBatchFailed   = "BATCH003"
	CodeRateLimited   = "RATE001"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// apiError is a failure with its HTTP mapping decided.
type apiError struct {
	Status  int
	Code    string
	Message string
	// Reason labels the rejected-batch metric. Empty for non-batch errors.
	Reason string
	Err    error
}

func (e *apiError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *apiError) Unwrap() error { return e.Err }

func badRequest(msg string, err error) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: msg, Reason: "bad_request", Err: err}
}

// classify maps an error from feed decoding or the engine.
func classify(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return &apiError{Status: http.StatusRequestEntityTooLarge, Code: CodeFeedTooLarge,
			Message: "feed exceeds the maximum size", Reason: "too_large", Err: err}
	case errors.Is(err, feed.ErrEmptyFeed),
		errors.Is(err, feed.ErrMalformedJSON),
		errors.Is(err, feed.ErrHeaderNotFound),
		errors.Is(err, feed.ErrUnknownFormat),
		errors.Is(err, feed.ErrMalformedCSV):
		return &apiError{Status: http.StatusBadRequest, Code: CodeFeedInvalid,
			Message: err.Error(), Reason: "invalid_feed", Err: err}
	case errors.Is(err, core.ErrStoreNotFound):
		return &apiError{Status: http.StatusNotFound, Code: CodeStoreNotFound,
			Message: "store not found", Reason: "unknown_store", Err: err}
	case errors.Is(err, ErrBusy):
		return &apiError{Status: http.StatusServiceUnavailable, Code: CodeBusy,
			Message: ErrBusy.Error(), Reason: "busy", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &apiError{Status: http.StatusGatewayTimeout, Code: CodeTimeout,
			Message: "batch did not finish in time", Reason: "timeout", Err: err}
	case errors.Is(err, context.Canceled):
		return &apiError{Status: statusClientClosedRequest, Code: CodeTimeout,
			Message: "request cancelled", Reason: "cancelled", Err: err}
	}
	return &apiError{Status: http.StatusInternalServerError, Code: CodeBatchFailed,
		Message: "batch could not be processed", Reason: "error", Err: err}
}

// statusClientClosedRequest is the nginx convention for a client that went
// away before the response.
const statusClientClosedRequest = 499

// writeError logs err and writes its response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", ae.Status,
		"code", ae.Code,
		"error", ae.Error(),
	}
	if ae.Status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ae.Message, Code: ae.Code})
}

// writeJSON encodes v as JSON with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
