package engine

import "time"

// Timers abstracts deadline scheduling so tests can fire phase deadlines
// manually instead of sleeping.
type Timers interface {
	// AfterFunc schedules fn after d and returns a stop function.
	AfterFunc(d time.Duration, fn func()) func() bool
}

// WallTimers schedules with time.AfterFunc.
type WallTimers struct{}

// AfterFunc implements Timers.
func (WallTimers) AfterFunc(d time.Duration, fn func()) func() bool {
	timer := time.AfterFunc(d, fn)
	return timer.Stop
}

// ManualTimers collects scheduled callbacks for tests to fire explicitly.
type ManualTimers struct {
	scheduled []*manualTimer
}

type manualTimer struct {
	fn      func()
	stopped bool
}

// AfterFunc implements Timers without real scheduling.
func (m *ManualTimers) AfterFunc(_ time.Duration, fn func()) func() bool {
	timer := &manualTimer{fn: fn}
	m.scheduled = append(m.scheduled, timer)
	return func() bool {
		if timer.stopped {
			return false
		}
		timer.stopped = true
		return true
	}
}

// Fire runs the most recently scheduled live callback, reporting whether one
// was pending.
func (m *ManualTimers) Fire() bool {
	for i := len(m.scheduled) - 1; i >= 0; i-- {
		timer := m.scheduled[i]
		if timer.stopped {
			continue
		}
		timer.stopped = true
		timer.fn()
		return true
	}
	return false
}

// Pending reports the number of live callbacks.
func (m *ManualTimers) Pending() int {
	count := 0
	for _, timer := range m.scheduled {
		if !timer.stopped {
			count++
		}
	}
	return count
}
