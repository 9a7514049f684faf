package handler

import (
	"errors"
	"net/http"
)

var (
	ErrNilResponse = errors.New("handler.errors.nil_response")
	ErrBind        = errors.New("handler.errors.bind_failed")
)

// HTTPError attaches a status code to an error.
type HTTPError struct {
	Code int
	Err  error
}

// NewHTTPError wraps err with code. The message is the wrapped error's.
func NewHTTPError(code int, err error) HTTPError {
	return HTTPError{Code: code, Err: err}
}

func (e HTTPError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Code)
	}
	return e.Err.Error()
}

func (e HTTPError) Unwrap() error { return e.Err }

// StatusCode returns the status code for err: the code of the first
// HTTPError in its chain, or 500.
func StatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr.Code >= 400 {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}
