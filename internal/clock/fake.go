package clock

import "time"

// FakeClock is a manually advanced Clock for tests. It always reports
// UTC so assertions line up with persisted timestamps.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward, letting tests cross cache TTLs and
// retry deadlines without sleeping.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
