package search

import "time"

// Timer is a pending delayed action
type Timer interface {
	// Stop cancels the action; it reports false if the action already ran
	Stop() bool
}

// Scheduler runs single-shot delayed actions
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemScheduler schedules actions on the runtime timers
var SystemScheduler Scheduler = clockScheduler{}
