package payment

import "errors"

// ErrNotVerified indicates the session is not paid or its correlation
// reference does not match the claimed analysis id. Never retried.
var ErrNotVerified = errors.New("payment not verified")

// ErrBadSignature indicates the webhook envelope failed signature
// verification.
var ErrBadSignature = errors.New("invalid webhook signature")
