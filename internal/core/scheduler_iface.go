package core

import "time"

// Timer is a scheduled callback. Stop reports whether it prevented the call.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d. The stage loop implementation runs fn on
// the loop goroutine so callbacks never overlap event handling.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}
