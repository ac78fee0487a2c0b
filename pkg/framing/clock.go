package framing

// Tick is a scheduler pass count.
type Tick uint64

// TickSource provides the current tick.
type TickSource interface {
	Now() Tick
}

// Clock is a monotonic tick counter.
type Clock struct {
	tick Tick
}

// Now implements TickSource.
func (c *Clock) Now() Tick {
	return c.tick
}

// Advance moves the clock one tick forward.
func (c *Clock) Advance() Tick {
	c.tick++
	return c.tick
}

// Timer measures an interval in ticks.
type Timer struct {
	Start    Tick
	Interval Tick
}

// Set starts the timer at now.
func (t *Timer) Set(now, interval Tick) {
	t.Start, t.Interval = now, interval
}

// Expired indicates the interval has elapsed at now.
func (t Timer) Expired(now Tick) bool {
	return now-t.Start >= t.Interval
}
