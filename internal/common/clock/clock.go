package clock

import "time"

//go:generate mockgen -package=mocks -destination=mocks/mock_clock.go github.com/clocktower/grimoire-server-go/internal/common/clock Clock
type Clock interface {
	Now() time.Time
	// After fires once d has passed.
	After(d time.Duration) <-chan time.Time
}

// DefaultClock implements the Clock interface using the system clock
type DefaultClock struct{}

// Now returns the current time
func (c *DefaultClock) Now() time.Time {
	return time.Now()
}

// After waits on the system clock
func (c *DefaultClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Fixed is a Clock frozen at one instant, used by replays and tests.
type Fixed struct {
	At time.Time
}

// Now returns the frozen instant
func (c Fixed) Now() time.Time {
	return c.At
}

// After fires at once: a frozen clock never makes anyone wait.
func (c Fixed) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.At.Add(d)
	return ch
}
