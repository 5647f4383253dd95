// Package timeutil lets the playback loop, cue deadlines and simulated camera
// tracks read time through a Clock so tests can drive it by hand.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the time source shared by the runner and the media tracks.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	// NewTicker starts a ticker with period d. Callers must Stop it.
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the viewer uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// MockClock only moves when told to. Its tickers fire from Advance, at most
// once per call, and the next deadline is measured from the time they fired.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*MockTicker]struct{}
}

// NewMockClock returns a MockClock reading start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start, tickers: make(map[*MockTicker]struct{})}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }

// Advance moves the clock forward by d and fires every ticker that is due.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	due := make([]*MockTicker, 0, len(c.tickers))
	for t := range c.tickers {
		if !now.Before(t.deadline) {
			t.deadline = now.Add(t.period)
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.Trigger(now)
	}
}

// Step advances the clock n times by d, so a ticker with period d fires on
// every step as long as its receiver keeps up.
func (c *MockClock) Step(d time.Duration, n int) {
	for range n {
		c.Advance(d)
	}
}

// Tickers reports how many tickers are running. Tests use it to wait until a
// loop has started before moving the clock.
func (c *MockClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *MockClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("timeutil: non-positive ticker period")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &MockTicker{
		clock:    c,
		ch:       make(chan time.Time, 1),
		period:   d,
		deadline: c.now.Add(d),
	}
	c.tickers[t] = struct{}{}
	return t
}

// MockTicker is a ticker owned by a MockClock. deadline and period are
// guarded by the clock's mutex.
type MockTicker struct {
	clock    *MockClock
	ch       chan time.Time
	period   time.Duration
	deadline time.Time
}

func (t *MockTicker) C() <-chan time.Time { return t.ch }

// Stop detaches the ticker from its clock. A tick already buffered stays
// readable, as with time.Ticker.
func (t *MockTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	delete(t.clock.tickers, t)
}

// Trigger delivers a tick now, ignoring the deadline. The tick is dropped when
// the previous one has not been read.
func (t *MockTicker) Trigger(now time.Time) {
	select {
	case t.ch <- now:
	default:
	}
}
