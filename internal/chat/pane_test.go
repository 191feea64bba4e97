package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/adamavenir/frayfeed/internal/feed"
	"github.com/adamavenir/frayfeed/internal/types"
)

var paneDay = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func paneItem(id string, at time.Time) *feed.Item {
	return &feed.Item{Record: types.MessageRecord{
		ID:         id,
		ChannelID:  "general",
		AuthorID:   "usr-ann",
		AuthorName: "ann",
		CreatedAt:  at.UnixMilli(),
		Content:    "hello " + id,
	}}
}

func newTestPane(t *testing.T, items ...*feed.Item) (*Pane, *feed.Timeline) {
	t.Helper()
	tl := feed.NewTimeline()
	for _, item := range items {
		tl.Append(item)
	}
	pane := NewPane(func() *feed.Timeline { return tl }, "usr-me", time.UTC)
	pane.now = func() time.Time { return paneDay.Add(time.Hour) }
	pane.Resize(60, 2)
	return pane, tl
}

func TestPaneLayoutCountsDayHeaders(t *testing.T) {
	pane, _ := newTestPane(t,
		paneItem("a", paneDay),
		paneItem("b", paneDay.Add(time.Minute)),
		paneItem("c", paneDay.Add(24*time.Hour)),
	)
	layout := pane.Layout()

	wantHeights := map[string]int{"a": 3, "b": 2, "c": 3}
	for _, box := range layout.Items {
		if box.Height != wantHeights[box.ID] {
			t.Fatalf("%s height: got %d want %d", box.ID, box.Height, wantHeights[box.ID])
		}
	}
	if layout.ContentHeight != 8 {
		t.Fatalf("content height: %d", layout.ContentHeight)
	}
}

func TestPaneSnapshotFollowsNewestUntilScrolled(t *testing.T) {
	pane, tl := newTestPane(t, paneItem("a", paneDay), paneItem("b", paneDay.Add(time.Minute)))

	frame := pane.Snapshot()
	if frame.ScrollTop != 3 || strings.Join(frame.Visible, ",") != "b" {
		t.Fatalf("pinned frame: top=%d visible=%v", frame.ScrollTop, frame.Visible)
	}

	pane.ScrollTo(0)
	tl.Append(paneItem("c", paneDay.Add(2*time.Minute)))
	frame = pane.Snapshot()
	if frame.ScrollTop != 0 || frame.Visible[0] != "a" {
		t.Fatalf("unpinned frame: top=%d visible=%v", frame.ScrollTop, frame.Visible)
	}

	pane.ScrollToBottom()
	tl.Append(paneItem("d", paneDay.Add(3*time.Minute)))
	frame = pane.Snapshot()
	if got := frame.Visible[len(frame.Visible)-1]; got != "d" {
		t.Fatalf("repinned frame ends at %s", got)
	}
}

func TestPaneRendersStateAndThreadCue(t *testing.T) {
	item := paneItem("p1", paneDay)
	item.State = feed.ItemPending
	item.Thread = &types.ThreadSummary{Total: 2, Unread: 1}
	pane, _ := newTestPane(t, item)

	frame := pane.Snapshot()
	for _, want := range []string{"Today", "@ann", "sending…", "2 replies (1 unread)"} {
		if !strings.Contains(frame.Content, want) {
			t.Fatalf("content missing %q:\n%s", want, frame.Content)
		}
	}

	box, ok := pane.Layout().Box("p1")
	if !ok || box.Height != 4 {
		t.Fatalf("box: %+v ok=%v", box, ok)
	}
}

func TestDayLabel(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		day  time.Time
		want string
	}{
		{now, "Today"},
		{now.AddDate(0, 0, -1), "Yesterday"},
		{now.AddDate(0, 0, -5), "Thursday, March 5"},
		{now.AddDate(-1, 0, 0), "March 10, 2025"},
	}
	for _, tt := range tests {
		if got := dayLabel(tt.day, now); got != tt.want {
			t.Fatalf("dayLabel(%s) = %q, want %q", tt.day.Format(time.DateOnly), got, tt.want)
		}
	}
}

func TestPaneCacheDropsRemovedItems(t *testing.T) {
	pane, tl := newTestPane(t,
		paneItem("a", paneDay),
		paneItem("b", paneDay.Add(time.Minute)),
		paneItem("c", paneDay.Add(2*time.Minute)),
	)
	pane.Layout()
	if len(pane.cache) != 3 {
		t.Fatalf("cache size: got %d want 3", len(pane.cache))
	}

	tl.Remove("b")
	pane.Layout()
	if _, ok := pane.cache["b"]; ok || len(pane.cache) != 2 {
		t.Fatalf("removed item still cached: %v", len(pane.cache))
	}

	tl.Reset()
	tl.Append(paneItem("x", paneDay))
	pane.Layout()
	if _, ok := pane.cache["x"]; !ok || len(pane.cache) != 1 {
		t.Fatalf("cache after reset: %d entries", len(pane.cache))
	}
}
