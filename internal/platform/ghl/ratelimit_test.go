package ghl

import (
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically: sleeping advances time.
type fakeClock struct {
	t      time.Time
	slept  []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
}
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testLimiter(c *fakeClock) *RateLimiter {
	return &RateLimiter{now: c.now, sleep: c.sleep}
}

func TestAcquire_FirstCallDoesNotWait(t *testing.T) {
	c := newFakeClock()
	rl := testLimiter(c)
	rl.Acquire()
	if len(c.slept) != 0 { t.Errorf("first acquire slept %v", c.slept) }
}

func TestAcquire_EnforcesMinimumSpacing(t *testing.T) {
	c := newFakeClock()
	rl := testLimiter(c)
	rl.Acquire()
	rl.Acquire()
	if len(c.slept) != 1 || c.slept[0] != minInterval {
		t.Errorf("expected one sleep of %v, got %v", minInterval, c.slept)
	}
}

func TestAcquire_PartialElapsedWaitsRemainder(t *testing.T) {
	c := newFakeClock()
	rl := testLimiter(c)
	rl.Acquire()
	c.advance(500 * time.Millisecond)
	rl.Acquire()
	if len(c.slept) != 1 || c.slept[0] != time.Second {
		t.Errorf("expected remainder sleep of 1s, got %v", c.slept)
	}
}

func TestAcquire_NoWaitAfterInterval(t *testing.T) {
	c := newFakeClock()
	rl := testLimiter(c)
	rl.Acquire()
	c.advance(2 * time.Second)
	rl.Acquire()
	if len(c.slept) != 0 { t.Errorf("unexpected sleeps %v", c.slept) }
}

func TestAcquire_ForgetsOldTimestamps(t *testing.T) {
	c := newFakeClock()
	rl := testLimiter(c)
	for i := 0; i < 5; i++ {
		rl.Acquire()
		c.advance(2 * time.Second)
	}
	c.advance(window)
	rl.Acquire()
	if len(rl.timestamps) != 1 {
		t.Errorf("expected old timestamps to be forgotten, kept %d", len(rl.timestamps))
	}
}
