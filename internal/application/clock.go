package application

import "time"

// Clock abstraction so time is easy to pin in tests
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
