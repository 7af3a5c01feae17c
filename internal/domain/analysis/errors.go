package analysis

import "errors"

// ErrNotFound indicates no record exists for the given id.
var ErrNotFound = errors.New("analysis not found")

// ErrNotPaid indicates the full report was requested before payment.
var ErrNotPaid = errors.New("not_paid")

// ErrProcessing is the retry-me signal: the record is paid but the full
// report is not available yet. It is not a failure.
var ErrProcessing = errors.New("processing")

// ErrInvalidInput indicates malformed or too-short client input.
var ErrInvalidInput = errors.New("invalid input")
