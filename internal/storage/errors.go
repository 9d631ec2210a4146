package storage

import "errors"

// ErrInvalidInput is returned when a record is malformed. It is never retried.
var ErrInvalidInput = errors.New("invalid input")
