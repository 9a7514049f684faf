package handler

import (
	"encoding/json"
	"net/http"
)

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus sets the status code, 200 by default.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

// JSON renders v as the response body.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FailureBody is the body of every error response.
type FailureBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Failure renders err as {"success":false,"error":...} with the status
// from StatusCode.
func Failure(err error) Response {
	return &jsonResponse{
		status: StatusCode(err),
		body:   FailureBody{Success: false, Error: err.Error()},
	}
}
