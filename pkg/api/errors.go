package api

import "errors"

var ErrInvalidQuery = errors.New("api.errors.invalid_query")
