package feed

import (
	"strconv"
	"testing"
	"time"

	"github.com/adamavenir/frayfeed/internal/types"
)

const (
	testChannel = "general"
	testUser    = "usr-me"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeViewport lays the engine's timeline out with fixed per-item heights.
type fakeViewport struct {
	tl        *Timeline
	heights   map[string]int
	def       int
	height    int
	scrollTop int
	scrolls   int
	// onScroll runs after every ScrollTo; used to simulate layout settling.
	onScroll func(v *fakeViewport)
}

func (v *fakeViewport) heightOf(item *Item) int {
	if h, ok := v.heights[item.ID()]; ok {
		return h
	}
	return v.def
}

func (v *fakeViewport) Layout() Layout {
	return StackLayout(v.tl.Items(), v.heightOf, v.scrollTop, v.height)
}

func (v *fakeViewport) ScrollTo(offset int) {
	v.scrollTop = offset
	v.scrollTop = v.Layout().ScrollTop
	v.scrolls++
	if v.onScroll != nil {
		v.onScroll(v)
	}
}

// anchorOffset returns the viewport offset of id.
func (v *fakeViewport) anchorOffset(t *testing.T, id string) int {
	t.Helper()
	layout := v.Layout()
	box, ok := layout.Box(id)
	if !ok {
		t.Fatalf("item %s not in layout", id)
	}
	return box.Top - layout.ScrollTop
}

type testEnv struct {
	engine *Engine
	clock  *fakeClock
	vp     *fakeViewport
	store  *MemoryStore
	events []HookEvent
}

func newTestEnv(t *testing.T, pageSize int) *testEnv {
	t.Helper()
	clock := newFakeClock()
	store := NewMemoryStore(50)
	env := &testEnv{clock: clock, store: store}
	env.engine = NewEngine(Options{
		UserID:           testUser,
		UserName:         "me",
		PageSize:         pageSize,
		MinLoadInterval:  500 * time.Millisecond,
		TopThreshold:     3,
		BottomThreshold:  3,
		RestoreTolerance: 1,
		RestoreRetries:   3,
		Location:         time.UTC,
		Now:              clock.Now,
		Store:            store,
	})
	env.vp = &fakeViewport{tl: env.engine.Timeline(), heights: map[string]int{}, def: 10, height: 20}
	env.engine.SetViewport(env.vp)
	for _, name := range []HookName{
		HookMessagesDisplayed, HookMessageAdded, HookMessageRemoved, HookMessageConfirmed,
		HookSendPending, HookSendRolledBack, HookThreadUpdated, HookHistoryEnd, HookReadStatus,
	} {
		env.engine.Hooks().On(name, func(ev HookEvent) {
			env.events = append(env.events, ev)
		})
	}
	env.engine.SwitchChannel(testChannel)
	return env
}

func (env *testEnv) count(name HookName) int {
	n := 0
	for _, ev := range env.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

// msg builds a record whose CreatedAt orders by n.
func msg(id string, n int) types.MessageRecord {
	return types.MessageRecord{
		ID:         id,
		ChannelID:  testChannel,
		AuthorID:   "usr-other",
		AuthorName: "other",
		CreatedAt:  time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC).UnixMilli() + int64(n)*1000,
		Content:    "message " + id,
	}
}

func msgs(from, to int) []types.MessageRecord {
	var out []types.MessageRecord
	for i := from; i <= to; i++ {
		out = append(out, msg(strconv.Itoa(i), i))
	}
	return out
}

func posted(rec types.MessageRecord) types.PushEvent {
	typ := types.EventMessagePosted
	if rec.ParentID != "" {
		typ = types.EventThreadMessagePosted
	}
	return types.PushEvent{Type: typ, ID: rec.ID, ChannelID: rec.ChannelID, Payload: &rec}
}

func deleted(id string) types.PushEvent {
	return types.PushEvent{Type: types.EventMessageDeleted, ID: id, ChannelID: testChannel}
}

func assertIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids: got %v want %v", got, want)
		}
	}
}
