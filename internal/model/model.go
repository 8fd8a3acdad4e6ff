package model

import "time"

// Session represents a single resolved free-electricity session.
//
// Descriptor is the raw announcement text exactly as published (e.g.
// "12-2pm, Saturday 4th October") and doubles as the session's identity:
// two sessions are the same iff their descriptors are byte-for-byte equal.
// Start and End always carry an explicit year, resolved by internal/parse.
type Session struct {
	Descriptor string

	Start time.Time
	End   time.Time
}

// Duration returns the length of the session.
func (s Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Ended reports whether the session has already finished at the given time.
func (s Session) Ended(now time.Time) bool {
	return !s.End.After(now)
}
