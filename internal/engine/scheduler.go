package engine

import "time"

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop cancels the callback, reporting whether it was still pending.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(delay time.Duration, fn func()) Timer
}

// TimeScheduler schedules callbacks on the runtime timers.
type TimeScheduler struct{}

// AfterFunc implements Scheduler.
//
//nolint:ireturn // *time.Timer satisfies Timer.
func (TimeScheduler) AfterFunc(delay time.Duration, fn func()) Timer {
	return time.AfterFunc(delay, fn)
}
