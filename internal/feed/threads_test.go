package feed

import (
	"testing"
	"time"

	"github.com/adamavenir/frayfeed/internal/types"
)

func newThreadFixture(t *testing.T) (*ThreadCache, *Timeline, *fakeClock, *[]string) {
	t.Helper()
	clock := newFakeClock()
	tl := NewTimeline()
	tl.Append(&Item{Record: msg("p1", 1)})
	tl.Append(&Item{Record: msg("p2", 2)})
	var applied []string
	cache := NewThreadCache(tl, clock.Now, 2*time.Second, func(id string, s *types.ThreadSummary) {
		applied = append(applied, id)
	})
	return cache, tl, clock, &applied
}

func summary(total int, ts int64, priority types.ThreadPriority, confirmed bool) types.ThreadSummary {
	return types.ThreadSummary{
		Total:     total,
		Timestamp: ts,
		Priority:  priority,
		Confirmed: confirmed,
		ChannelID: testChannel,
	}
}

func TestThreadCachePriority(t *testing.T) {
	cache, tl, clock, _ := newThreadFixture(t)

	if got := cache.QueueUpdate("p1", summary(5, 200, types.ThreadPriorityHigh, true), SourcePush); got != UpdateApplied {
		t.Fatalf("push: got %s", got)
	}
	clock.Advance(3 * time.Second)

	tests := []struct {
		name   string
		in     types.ThreadSummary
		source UpdateSource
		want   UpdateResult
		total  int
	}{
		{"older refresh", summary(3, 100, types.ThreadPriorityNone, true), SourceRefresh, UpdateDiscarded, 5},
		{"equal refresh", summary(3, 200, types.ThreadPriorityNone, true), SourceRefresh, UpdateDiscarded, 5},
		{"older cache", summary(2, 150, types.ThreadPriorityNone, false), SourceCache, UpdateDiscarded, 5},
		{"newer refresh", summary(6, 300, types.ThreadPriorityNone, true), SourceRefresh, UpdateApplied, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cache.QueueUpdate("p1", tt.in, tt.source); got != tt.want {
				t.Fatalf("result: got %s want %s", got, tt.want)
			}
			item, _ := tl.Get("p1")
			if item.Thread == nil || item.Thread.Total != tt.total {
				t.Fatalf("rendered total: got %+v want %d", item.Thread, tt.total)
			}
		})
	}
}

func TestThreadCacheLock(t *testing.T) {
	cache, tl, clock, _ := newThreadFixture(t)

	cache.QueueUpdate("p1", summary(2, 100, types.ThreadPriorityHigh, true), SourcePush)
	if !cache.Locked("p1") {
		t.Fatalf("push should take the lock")
	}
	if got := cache.QueueUpdate("p1", summary(9, 500, types.ThreadPriorityNone, true), SourceRefresh); got != UpdateLocked {
		t.Fatalf("refresh under lock: got %s", got)
	}
	if got := cache.QueueUpdate("p1", summary(3, 101, types.ThreadPriorityHigh, true), SourcePush); got != UpdateApplied {
		t.Fatalf("push under lock: got %s", got)
	}
	if got := cache.QueueUpdate("p1", summary(0, 600, types.ThreadPriorityNone, true), SourceRefresh); got != UpdateEvicted {
		t.Fatalf("force delete under lock: got %s", got)
	}
	item, _ := tl.Get("p1")
	if item.Thread != nil || item.Record.ThreadCount != 0 {
		t.Fatalf("force delete should strip cues: %+v", item)
	}

	clock.Advance(3 * time.Second)
	if got := cache.QueueUpdate("p1", summary(4, 700, types.ThreadPriorityNone, true), SourceRefresh); got != UpdateApplied {
		t.Fatalf("refresh after lock expiry: got %s", got)
	}
}

func TestThreadCacheOtherChannelDoesNotProtect(t *testing.T) {
	cache, _, _, _ := newThreadFixture(t)
	cache.QueueUpdate("p2", summary(5, 200, types.ThreadPriorityHigh, true), SourcePush)
	cache.Reset()
	cache.QueueUpdate("p2", summary(5, 200, types.ThreadPriorityHigh, true), SourceCache)

	other := summary(1, 100, types.ThreadPriorityNone, true)
	other.ChannelID = "random"
	if got := cache.QueueUpdate("p2", other, SourceRefresh); got != UpdateApplied {
		t.Fatalf("different channel: got %s", got)
	}
}

func TestThreadCacheSweepHeals(t *testing.T) {
	cache, tl, _, applied := newThreadFixture(t)
	cache.QueueUpdate("p1", summary(2, 100, types.ThreadPriorityNone, true), SourceRefresh)

	item, _ := tl.Get("p1")
	item.Thread = nil
	stray, _ := tl.Get("p2")
	stray.Thread = &types.ThreadSummary{Total: 7}

	if healed := cache.Sweep(); healed != 2 {
		t.Fatalf("healed: got %d want 2", healed)
	}
	if item.Thread == nil || item.Thread.Total != 2 {
		t.Fatalf("block not re-asserted: %+v", item.Thread)
	}
	if stray.Thread != nil {
		t.Fatalf("uncached block not stripped")
	}
	if len(*applied) != 2 {
		t.Fatalf("apply callbacks: %v", *applied)
	}
	if healed := cache.Sweep(); healed != 0 {
		t.Fatalf("second sweep healed %d", healed)
	}
}
