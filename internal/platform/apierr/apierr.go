package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Error struct {
	Status int
	Code   string
	Err    error

	// RetryAfter is set on throttling errors and surfaced as a Retry-After header.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Msg builds an error whose message is shown to the respondent as-is.
func Msg(status int, code string, message string) *Error {
	return &Error{Status: status, Code: code, Err: errors.New(message)}
}

func TooManyRequests(message string, retryAfter time.Duration) *Error {
	return &Error{Status: http.StatusTooManyRequests, Code: "RATE_LIMITED", Err: errors.New(message), RetryAfter: retryAfter}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// StatusOf returns the HTTP status of the first *Error in err's chain, or 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}
