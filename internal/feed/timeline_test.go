package feed

import (
	"context"
	"errors"
	"testing"
	"time"
)

func items(ids ...string) []*Item {
	var out []*Item
	for i, id := range ids {
		out = append(out, &Item{Record: msg(id, i)})
	}
	return out
}

func TestTimelinePrependSkipsDuplicates(t *testing.T) {
	tl := NewTimeline()
	for _, item := range items("3", "4") {
		tl.Append(item)
	}
	n := tl.Prepend(items("1", "2", "3"))
	if n != 2 {
		t.Fatalf("inserted: got %d want 2", n)
	}
	assertIDs(t, tl.IDs(), "1", "2", "3", "4")
	if tl.Append(&Item{Record: msg("4", 9)}) {
		t.Fatalf("duplicate append accepted")
	}
}

func TestTimelineRewriteKeepsPosition(t *testing.T) {
	tl := NewTimeline()
	for _, item := range items("1", "temp_x", "3") {
		tl.Append(item)
	}
	if !tl.RewriteID("temp_x", "2", nil) {
		t.Fatalf("rewrite failed")
	}
	assertIDs(t, tl.IDs(), "1", "2", "3")
	if _, ok := tl.Get("temp_x"); ok {
		t.Fatalf("old id still indexed")
	}
	if tl.RewriteID("2", "3", nil) {
		t.Fatalf("rewrite onto an existing id must fail")
	}
}

func TestTimelineInsertAndRemove(t *testing.T) {
	tl := NewTimeline()
	for _, item := range items("1", "3") {
		tl.Append(item)
	}
	tl.InsertAt(1, &Item{Record: msg("2", 2)})
	tl.InsertAt(99, &Item{Record: msg("4", 4)})
	assertIDs(t, tl.IDs(), "1", "2", "3", "4")

	item, idx, ok := tl.Remove("3")
	if !ok || idx != 2 || item.ID() != "3" {
		t.Fatalf("remove: ok=%v idx=%d", ok, idx)
	}
	if _, _, ok := tl.Remove("3"); ok {
		t.Fatalf("second remove succeeded")
	}
	if tl.IndexOf("4") != 2 {
		t.Fatalf("index after remove: %d", tl.IndexOf("4"))
	}
}

func TestTimelineSections(t *testing.T) {
	tl := NewTimeline()
	a, b, c := msg("a", 0), msg("b", 1), msg("c", 2)
	c.CreatedAt += int64(2 * 24 * time.Hour / time.Millisecond)
	for _, rec := range []Item{{Record: a}, {Record: b}, {Record: c}} {
		rec := rec
		tl.Append(&rec)
	}
	sections := tl.Sections(time.UTC)
	if len(sections) != 2 || len(sections[0].Items) != 2 || sections[1].Day != "2025-03-16" {
		t.Fatalf("sections: %+v", sections)
	}
}

func TestIdentityTracker(t *testing.T) {
	tr := NewIdentityTracker()
	tr.MarkDisplayed("a")
	tr.MarkDisplayed("")
	if !tr.IsDisplayed("a") || tr.Len() != 1 {
		t.Fatalf("mark: len=%d", tr.Len())
	}
	if changed := tr.ResyncFromView([]string{"a", "b"}); changed != 1 {
		t.Fatalf("resync changed: %d", changed)
	}
	tr.Remove("a")
	if tr.IsDisplayed("a") {
		t.Fatalf("remove failed")
	}
	tr.Clear()
	if tr.Len() != 0 {
		t.Fatalf("clear failed")
	}
	if got := GroupKey("c", "a", "b"); got != "a,b,c" {
		t.Fatalf("group key: %q", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"nil", nil, OutcomeOK},
		{"plain", errors.New("boom"), OutcomeRetryable},
		{"deadline", context.DeadlineExceeded, OutcomeRetryable},
		{"server", statusErr{status: 502}, OutcomeRetryable},
		{"validation", statusErr{status: 400}, OutcomeFatal},
		{"wrapped validation", errors.Join(errors.New("send"), statusErr{status: 422}), OutcomeFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestMemoryStoreRecentlyDeleted(t *testing.T) {
	s := NewMemoryStore(3)
	for _, id := range []string{"a", "b", "c", "d", "b"} {
		_ = s.RecordDeleted(id)
	}
	got, _ := s.RecentlyDeleted(0)
	assertIDs(t, got, "b", "d", "c")
}
