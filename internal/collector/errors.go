package collector

import "errors"

var (
	// ErrSourceUnavailable is returned when a mandatory counter file is missing or unreadable.
	ErrSourceUnavailable = errors.New("counter source unavailable")
	// ErrMalformedSource is returned when a mandatory counter file cannot be parsed.
	ErrMalformedSource = errors.New("malformed counter source")
	// ErrNoBattery is returned when no battery power supply exists.
	ErrNoBattery = errors.New("no battery found")
)
