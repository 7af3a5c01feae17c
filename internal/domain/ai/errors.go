package ai

import "errors"

// ErrUpstream indicates the completion service call itself failed
// (network, quota, empty response). Not retried locally.
var ErrUpstream = errors.New("completion service error")

// ErrMalformed indicates the completion service returned text that is not
// JSON and contains no JSON object substring.
var ErrMalformed = errors.New("malformed completion response")
