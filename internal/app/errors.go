package app

import (
	"errors"
	"fmt"
	"net/http"

	"wishwall/internal/photo"
	"wishwall/internal/ratelimit"
)

// RequestError carries an HTTP status and the user-facing message for it.
type RequestError struct {
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RequestError) Unwrap() error { return e.Err }

func badRequest(msg string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: msg}
}

func upstream(msg string, err error) *RequestError {
	return &RequestError{Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// mapPhotoError converts normalizer failures into user-facing 400s.
func mapPhotoError(err error) *RequestError {
	switch {
	case errors.Is(err, photo.ErrNotImage):
		return badRequest("Only images allowed")
	case errors.Is(err, photo.ErrTooLarge):
		return badRequest("Image too large (max 20MB)")
	case errors.Is(err, photo.ErrTooLargeAfterCompress):
		return badRequest("Image too large even after compression")
	default:
		return badRequest("Unsupported image")
	}
}

// mapGuardError converts guard failures: limit errors become 429s carrying
// their retry hint, store failures surface as 500s with the cause appended.
func mapGuardError(err error) *RequestError {
	var limitErr *ratelimit.LimitError
	if errors.As(err, &limitErr) {
		return &RequestError{Status: http.StatusTooManyRequests, Message: limitErr.Message, Err: limitErr}
	}
	return upstream(fmt.Sprintf("DB error: %v", err), err)
}
