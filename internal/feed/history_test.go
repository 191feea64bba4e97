package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/adamavenir/frayfeed/internal/types"
)

func TestLoadOlderWorkedExample(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine

	e.DisplayMessages(msgs(1, 3), DisplayOptions{Limit: 3, Newest: true})
	assertIDs(t, e.Timeline().IDs(), "1", "2", "3")
	if e.Scroll().HasReachedEnd {
		t.Fatalf("full first page must not mark the end")
	}

	env.vp.scrollTop = 0
	before := env.vp.anchorOffset(t, "1")

	req, ok := e.BeginLoadOlder()
	if !ok {
		t.Fatalf("expected older load to start")
	}
	if req.Query.BeforeID != "1" || req.Query.Limit != 3 {
		t.Fatalf("query: got %+v", req.Query)
	}
	if req.Anchors.Primary == nil || req.Anchors.Primary.MessageID != "1" {
		t.Fatalf("primary anchor: got %+v", req.Anchors.Primary)
	}

	res := e.CompleteLoadOlder(req, Ok(msgs(-2, 0)))
	if res.Inserted != 3 || res.ReachedEnd {
		t.Fatalf("result: got %+v", res)
	}
	assertIDs(t, e.Timeline().IDs(), "-2", "-1", "0", "1", "2", "3")
	if got := env.vp.anchorOffset(t, "1"); got != before {
		t.Fatalf("anchor offset: got %d want %d", got, before)
	}
	if e.Scroll().OldestID != "-2" {
		t.Fatalf("oldest id: got %q", e.Scroll().OldestID)
	}
	if res.Restore == nil || res.Restore.Method != RestorePrimary || !res.Restore.Verified {
		t.Fatalf("restore: got %+v", res.Restore)
	}

	env.clock.Advance(time.Second)
	req, ok = e.BeginLoadOlder()
	if !ok || req.Query.BeforeID != "-2" {
		t.Fatalf("second load: ok=%v req=%+v", ok, req)
	}
	res = e.CompleteLoadOlder(req, Ok[[]types.MessageRecord](nil))
	if !res.ReachedEnd || !e.Scroll().HasReachedEnd {
		t.Fatalf("expected end of history, got %+v", res)
	}
	if !e.EndShown() || env.count(HookHistoryEnd) != 1 {
		t.Fatalf("end marker: shown=%v hooks=%d", e.EndShown(), env.count(HookHistoryEnd))
	}

	env.clock.Advance(time.Second)
	if _, ok := e.BeginLoadOlder(); ok {
		t.Fatalf("no further load may fire after the end")
	}
	if env.count(HookHistoryEnd) != 1 {
		t.Fatalf("end marker emitted more than once")
	}
}

func TestLoadOlderScrollStability(t *testing.T) {
	for _, n := range []int{1, 2, 4, 5} {
		n := n
		t.Run(string(rune('0'+n)), func(t *testing.T) {
			env := newTestEnv(t, 5)
			e := env.engine
			e.DisplayMessages(msgs(10, 14), DisplayOptions{Limit: 5, Newest: true})
			env.vp.heights["11"] = 7
			env.vp.scrollTop = 2

			before := env.vp.anchorOffset(t, "11")
			req, ok := e.BeginLoadOlder()
			if !ok {
				t.Fatalf("expected load to start")
			}
			page := msgs(10-n, 9)
			res := e.CompleteLoadOlder(req, Ok(page))
			if res.Inserted != n {
				t.Fatalf("inserted: got %d want %d", res.Inserted, n)
			}
			if res.ReachedEnd != (n < 5) {
				t.Fatalf("reached end: got %v for n=%d", res.ReachedEnd, n)
			}
			anchor := res.Restore.AnchorID
			if anchor == "" {
				t.Fatalf("expected an anchor restoration, got %+v", res.Restore)
			}
			got := env.vp.anchorOffset(t, anchor)
			want := req.Anchors.Primary.ViewportOffset
			if abs(got-want) > 1 {
				t.Fatalf("anchor %s offset: got %d want %d (before %d)", anchor, got, want, before)
			}
		})
	}
}

func TestLoadOlderRetriesWhileLayoutSettles(t *testing.T) {
	env := newTestEnv(t, 2)
	e := env.engine
	e.DisplayMessages(msgs(5, 8), DisplayOptions{Limit: 4, Newest: true})
	env.vp.scrollTop = 0

	req, ok := e.BeginLoadOlder()
	if !ok {
		t.Fatalf("expected load to start")
	}
	settled := false
	env.vp.onScroll = func(v *fakeViewport) {
		if !settled {
			// An image above the anchor finishes loading after the first pass.
			settled = true
			v.heights["3"] = 25
		}
	}
	res := e.CompleteLoadOlder(req, Ok(msgs(3, 4)))
	if res.Restore == nil || !res.Restore.Verified {
		t.Fatalf("restore not verified: %+v", res.Restore)
	}
	if res.Restore.Attempts != 2 {
		t.Fatalf("attempts: got %d want 2", res.Restore.Attempts)
	}
	if got := env.vp.anchorOffset(t, "5"); got != 0 {
		t.Fatalf("anchor offset: got %d want 0", got)
	}
}

func TestLoadOlderGuards(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 3), DisplayOptions{Limit: 3, Newest: true})

	req, ok := e.BeginLoadOlder()
	if !ok {
		t.Fatalf("first load should start")
	}
	if _, ok := e.BeginLoadOlder(); ok {
		t.Fatalf("load must not start while another is in flight")
	}
	e.CompleteLoadOlder(req, Failed[[]types.MessageRecord](errors.New("dial tcp: timeout")))
	if e.Scroll().IsLoading {
		t.Fatalf("guards must be released after failure")
	}
	assertIDs(t, e.Timeline().IDs(), "1", "2", "3")

	if _, ok := e.BeginLoadOlder(); ok {
		t.Fatalf("min load interval must hold")
	}
	env.clock.Advance(time.Second)

	e.Lock()
	if _, ok := e.BeginLoadOlder(); ok {
		t.Fatalf("locked loader must not start")
	}
	e.Unlock()

	req, ok = e.BeginLoadOlder()
	if !ok || req.Query.BeforeID != "1" {
		t.Fatalf("failed boundary should be retried: ok=%v", ok)
	}
}

func TestLoadOlderIgnoresStaleEpoch(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 3), DisplayOptions{Limit: 3, Newest: true})
	req, _ := e.BeginLoadOlder()

	e.SwitchChannel("random")
	res := e.CompleteLoadOlder(req, Ok(msgs(-2, 0)))
	if !res.Stale {
		t.Fatalf("expected stale result")
	}
	if e.Timeline().Len() != 0 {
		t.Fatalf("stale page must not touch the new channel")
	}
}

func TestLoadOlderFiltersDeletedAndDuplicates(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	_ = env.store.RecordDeleted("-1")
	e.DisplayMessages(msgs(1, 3), DisplayOptions{Limit: 3, Newest: true})

	req, _ := e.BeginLoadOlder()
	page := append(msgs(-1, 0), msg("1", 1))
	res := e.CompleteLoadOlder(req, Ok(page))
	if res.Inserted != 1 {
		t.Fatalf("inserted: got %d want 1", res.Inserted)
	}
	assertIDs(t, e.Timeline().IDs(), "0", "1", "2", "3")
}

func TestLoadNewer(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 3), DisplayOptions{Limit: 3})

	if got := e.HandleEvent(posted(msg("9", 9))); got.Action != RouteDeferred {
		t.Fatalf("live post away from newest: got %+v", got)
	}
	if e.NewerAvailable() != 1 {
		t.Fatalf("newer available: got %d", e.NewerAvailable())
	}

	req, ok := e.BeginLoadNewer()
	if !ok || req.Query.AfterID != "3" {
		t.Fatalf("newer load: ok=%v req=%+v", ok, req)
	}
	res := e.CompleteLoadNewer(req, Ok(msgs(4, 6)))
	if res.Inserted != 3 || res.ReachedEnd {
		t.Fatalf("first newer page: %+v", res)
	}
	env.clock.Advance(time.Second)
	req, _ = e.BeginLoadNewer()
	res = e.CompleteLoadNewer(req, Ok(msgs(7, 9)[:3]))
	if res.Inserted != 3 {
		t.Fatalf("second newer page: %+v", res)
	}
	env.clock.Advance(time.Second)
	req, _ = e.BeginLoadNewer()
	res = e.CompleteLoadNewer(req, Ok(msgs(10, 10)))
	if !res.ReachedEnd || !e.Scroll().HasReachedNewest || e.NewerAvailable() != 0 {
		t.Fatalf("expected newest boundary: %+v", res)
	}
	if got := e.HandleEvent(posted(msg("11", 11))); got.Action != RouteInserted {
		t.Fatalf("live post at newest: got %+v", got)
	}
}

func TestOnScrollDirection(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 6), DisplayOptions{Limit: 3})

	env.vp.scrollTop = 0
	if got := e.OnScroll(); got != LoadOlder {
		t.Fatalf("at top: got %q", got)
	}
	env.vp.scrollTop = 40
	if got := e.OnScroll(); got != LoadNewer {
		t.Fatalf("at bottom: got %q", got)
	}
	env.vp.scrollTop = 20
	if got := e.OnScroll(); got != LoadNone {
		t.Fatalf("middle: got %q", got)
	}
}

func TestDisplayMessagesShortPageMarksEnd(t *testing.T) {
	env := newTestEnv(t, 30)
	e := env.engine
	n := e.DisplayMessages(msgs(1, 2), DisplayOptions{Limit: 30, Newest: true})
	if n != 2 || !e.Scroll().HasReachedEnd || !e.EndShown() {
		t.Fatalf("short first page: n=%d scroll=%+v", n, e.Scroll())
	}
	if env.vp.scrollTop != env.vp.Layout().MaxScroll() {
		t.Fatalf("newest display should pin to bottom")
	}
}

func TestLoadOlderKeepsRendererLock(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 3), DisplayOptions{Limit: 3, Newest: true})
	env.vp.scrollTop = 0

	req, ok := e.BeginLoadOlder()
	if !ok {
		t.Fatalf("expected load to start")
	}
	e.Lock()
	e.CompleteLoadOlder(req, Ok(msgs(-2, 0)))
	if !e.Scroll().IsLocked {
		t.Fatalf("older load released a lock it did not take")
	}

	e.Unlock()
	env.clock.Advance(time.Second)
	req, ok = e.BeginLoadOlder()
	if !ok {
		t.Fatalf("expected second load to start")
	}
	e.CompleteLoadOlder(req, Ok(msgs(-5, -3)))
	if e.Scroll().IsLocked {
		t.Fatalf("older load left the feed locked")
	}
}
