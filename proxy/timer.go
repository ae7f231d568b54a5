package proxy

import "time"

// Timer captures time offsets for key events during the life-cycle of an HTTP
// request.
type Timer struct {
	StartedAt       time.Time
	TimeToFirstByte float64
	TimeToLastByte  float64
}

// Start the timer.
func (timer *Timer) Start() {
	timer.StartedAt = time.Now()
}

// FirstByteSent records the time offset to the first byte.
func (timer *Timer) FirstByteSent() {
	timer.TimeToFirstByte = timer.offset()
}

// IsFirstByteSent returns true if the first byte has been sent.
func (timer *Timer) IsFirstByteSent() bool {
	return timer.TimeToFirstByte > 0
}

// LastByteSent records the time offset to the last byte.
func (timer *Timer) LastByteSent() {
	timer.TimeToLastByte = timer.offset()
}

// IsLastByteSent returns true if the last byte has been sent.
func (timer *Timer) IsLastByteSent() bool {
	return timer.TimeToLastByte > 0
}

// Elapsed returns the time since the timer was started.
func (timer *Timer) Elapsed() time.Duration {
	return time.Since(timer.StartedAt)
}

// offset returns the elapsed time in milliseconds, never less than a
// nanosecond so that a recorded event is distinguishable from none.
func (timer *Timer) offset() float64 {
	duration := time.Since(timer.StartedAt)
	if duration <= 0 {
		duration = time.Nanosecond
	}

	return float64(duration) / float64(time.Millisecond)
}
