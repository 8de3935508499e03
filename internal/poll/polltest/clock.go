// Package polltest provides a deterministic clock for exercising wait loops.
package polltest

import (
	"sync"
	"time"
)

// Clock advances only when something sleeps on it. Every After call moves
// time forward by d and fires immediately.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	// OnSleep, if set, runs after each advance.
	OnSleep func(now time.Time)
}

// NewClock starts at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	now, hook := c.now, c.OnSleep
	c.mu.Unlock()
	if hook != nil {
		hook(now)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves time forward without recording a sleep, e.g. to model a slow
// remote call.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleeps returns every duration slept so far.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
