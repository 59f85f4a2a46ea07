package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx answer from the summarization service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "summarization service error"
	}
	return fmt.Sprintf("summarization service returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

var errMalformedBody = errors.New("malformed response body")

// describe renders err as a short user-facing reason.
func describe(err error) string {
	var he *HTTPError
	switch {
	case errors.As(err, &he):
		return he.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	case errors.Is(err, errMalformedBody):
		return "malformed response body"
	default:
		return err.Error()
	}
}
