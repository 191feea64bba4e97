package core

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestExpiringSetTryAcquire(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	set := NewExpiringSet(clock.Now)

	if !set.TryAcquire("m1", 100*time.Millisecond) {
		t.Fatal("first acquire should succeed")
	}
	if set.TryAcquire("m1", 100*time.Millisecond) {
		t.Fatal("second acquire within ttl should fail")
	}
	clock.Advance(99 * time.Millisecond)
	if set.TryAcquire("m1", 100*time.Millisecond) {
		t.Fatal("acquire just before expiry should fail")
	}
	clock.Advance(time.Millisecond)
	if !set.TryAcquire("m1", 100*time.Millisecond) {
		t.Fatal("acquire at expiry should succeed")
	}
}

func TestExpiringSetSweepAndRelease(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	set := NewExpiringSet(clock.Now)
	set.Set("a", time.Second)
	set.Set("b", 3*time.Second)
	set.Set("c", time.Second)

	set.Release("c")
	if set.Held("c") {
		t.Fatal("released key still held")
	}

	clock.Advance(2 * time.Second)
	if dropped := set.Sweep(); dropped != 1 {
		t.Fatalf("sweep dropped %d, want 1", dropped)
	}
	if set.Len() != 1 || !set.Held("b") {
		t.Fatalf("expected only b to remain, len=%d", set.Len())
	}

	set.Reset()
	if set.Len() != 0 {
		t.Fatal("reset should empty the set")
	}
}
