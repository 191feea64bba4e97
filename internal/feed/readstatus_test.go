package feed

import (
	"testing"

	"github.com/adamavenir/frayfeed/internal/types"
)

func TestReadTrackerMonotonic(t *testing.T) {
	store := NewMemoryStore(10)
	var seen []ReadTransition
	r := NewReadTracker(store, nil, func(tr ReadTransition) { seen = append(seen, tr) })

	steps := []struct {
		name string
		do   func() (ReadTransition, bool)
		want types.ReadStatus
	}{
		{"first pass", func() (ReadTransition, bool) { return r.MarkVisible("m1", false) }, types.ReadStatusFirstView},
		{"second pass", func() (ReadTransition, bool) { return r.MarkVisible("m1", false) }, types.ReadStatusFullyRead},
		{"third pass", func() (ReadTransition, bool) { return r.MarkVisible("m1", false) }, types.ReadStatusFullyRead},
		{"explicit read", func() (ReadTransition, bool) { return r.MarkFullyRead("m1", false) }, types.ReadStatusFullyRead},
	}
	for _, step := range steps {
		step.do()
		if got := r.Get("m1", false); got != step.want {
			t.Fatalf("%s: got %q want %q", step.name, got, step.want)
		}
	}
	if len(seen) != 2 {
		t.Fatalf("transitions: got %d want 2", len(seen))
	}
	for _, tr := range seen {
		if tr.To.Rank() <= tr.From.Rank() {
			t.Fatalf("regression: %+v", tr)
		}
	}

	if _, ok := r.Reset("m1", false); !ok {
		t.Fatalf("reset should apply")
	}
	if got, _ := store.GetReadStatus("m1", false); got != types.ReadStatusNone {
		t.Fatalf("reset not persisted: %q", got)
	}
}

func TestReadTrackerKeysByScope(t *testing.T) {
	store := NewMemoryStore(10)
	r := NewReadTracker(store, nil, nil)
	r.MarkFullyRead("m1", true)
	if got := r.Get("m1", false); got != types.ReadStatusNone {
		t.Fatalf("main scope affected by thread scope: %q", got)
	}
	fresh := NewReadTracker(store, nil, nil)
	if got := fresh.Get("m1", true); got != types.ReadStatusFullyRead {
		t.Fatalf("thread status not persisted: %q", got)
	}
}

func TestUnreadBadgeDecrementsOnce(t *testing.T) {
	env := newTestEnv(t, 5)
	e := env.engine
	e.DisplayMessages(msgs(1, 3), DisplayOptions{Limit: 5, Newest: true})
	if e.UnreadInView() != 3 {
		t.Fatalf("initial unread: %d", e.UnreadInView())
	}

	e.ObserveVisible([]string{"1", "2"})
	if e.UnreadInView() != 1 {
		t.Fatalf("after first view: %d", e.UnreadInView())
	}
	e.ObserveVisible([]string{"1", "2"})
	e.ObserveVisible(nil)
	e.ObserveVisible([]string{"1", "2"})
	if e.UnreadInView() != 1 {
		t.Fatalf("re-viewing must not decrement again: %d", e.UnreadInView())
	}
	if got := e.GetReadStatus("1"); got != types.ReadStatusFullyRead {
		t.Fatalf("second pass should be fully read: %q", got)
	}

	e.MarkFullyRead("3", false)
	if e.UnreadInView() != 0 {
		t.Fatalf("explicit read: %d", e.UnreadInView())
	}

	if !e.ResetReadStatus("3", false) || e.UnreadInView() != 1 {
		t.Fatalf("reset should restore the badge: %d", e.UnreadInView())
	}
}
