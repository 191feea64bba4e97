package feed

import (
	"time"

	"github.com/adamavenir/frayfeed/internal/types"
)

// ItemState tracks the delivery state of a rendered item.
type ItemState string

const (
	ItemConfirmed ItemState = ""
	ItemPending   ItemState = "pending"
	// ItemPersistedPending is a temp item whose send failed transiently; it
	// stays visible until a live echo or fetched page reveals the canonical record.
	ItemPersistedPending ItemState = "persisted_pending"
)

// Item is one rendered message in a timeline.
type Item struct {
	Record types.MessageRecord
	State  ItemState
	Unread bool
	// Thread is the rendered thread-summary block; nil when none is shown.
	Thread *types.ThreadSummary
}

// ID returns the id the item is currently rendered under.
func (i *Item) ID() string {
	return i.Record.ID
}

// Section is a run of consecutive items sharing a calendar day.
type Section struct {
	Day   string
	Date  time.Time
	Items []*Item
}

// Timeline is the ordered, rendered feed. Date sections are derived from
// item order on demand, so removing the last item of a day removes its
// separator in the same step.
type Timeline struct {
	items []*Item
	byID  map[string]*Item
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{byID: make(map[string]*Item)}
}

func (t *Timeline) Len() int {
	return len(t.items)
}

// Items returns the items in render order. Callers must not modify the slice.
func (t *Timeline) Items() []*Item {
	return t.items
}

// IDs returns the rendered ids in order.
func (t *Timeline) IDs() []string {
	ids := make([]string, 0, len(t.items))
	for _, item := range t.items {
		ids = append(ids, item.ID())
	}
	return ids
}

func (t *Timeline) Get(id string) (*Item, bool) {
	item, ok := t.byID[id]
	return item, ok
}

// IndexOf returns the position of id, or -1.
func (t *Timeline) IndexOf(id string) int {
	if _, ok := t.byID[id]; !ok {
		return -1
	}
	for i, item := range t.items {
		if item.ID() == id {
			return i
		}
	}
	return -1
}

// First returns the oldest rendered item.
func (t *Timeline) First() (*Item, bool) {
	if len(t.items) == 0 {
		return nil, false
	}
	return t.items[0], true
}

// Last returns the newest rendered item.
func (t *Timeline) Last() (*Item, bool) {
	if len(t.items) == 0 {
		return nil, false
	}
	return t.items[len(t.items)-1], true
}

// Append adds item at the bottom. It returns false if the id is already present.
func (t *Timeline) Append(item *Item) bool {
	if _, exists := t.byID[item.ID()]; exists {
		return false
	}
	t.items = append(t.items, item)
	t.byID[item.ID()] = item
	return true
}

// Prepend inserts items, in order, above the current first item and returns
// how many were inserted. Items whose id is already present are skipped.
func (t *Timeline) Prepend(items []*Item) int {
	fresh := make([]*Item, 0, len(items))
	for _, item := range items {
		if _, exists := t.byID[item.ID()]; exists {
			continue
		}
		t.byID[item.ID()] = item
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return 0
	}
	t.items = append(fresh, t.items...)
	return len(fresh)
}

// InsertAt places item at index, clamped to the timeline bounds.
func (t *Timeline) InsertAt(index int, item *Item) bool {
	if _, exists := t.byID[item.ID()]; exists {
		return false
	}
	if index < 0 {
		index = 0
	}
	if index > len(t.items) {
		index = len(t.items)
	}
	t.items = append(t.items, nil)
	copy(t.items[index+1:], t.items[index:])
	t.items[index] = item
	t.byID[item.ID()] = item
	return true
}

// Remove deletes id and reports the removed item and its former index.
func (t *Timeline) Remove(id string) (*Item, int, bool) {
	idx := t.IndexOf(id)
	if idx < 0 {
		return nil, -1, false
	}
	item := t.items[idx]
	t.items = append(t.items[:idx], t.items[idx+1:]...)
	delete(t.byID, id)
	return item, idx, true
}

// RewriteID renames an item in place, keeping its position. The record is
// replaced when rec is non-nil.
func (t *Timeline) RewriteID(oldID, newID string, rec *types.MessageRecord) bool {
	item, ok := t.byID[oldID]
	if !ok {
		return false
	}
	if _, taken := t.byID[newID]; taken && newID != oldID {
		return false
	}
	delete(t.byID, oldID)
	if rec != nil {
		item.Record = *rec
	}
	item.Record.ID = newID
	t.byID[newID] = item
	return true
}

// Reset drops every item.
func (t *Timeline) Reset() {
	t.items = nil
	t.byID = make(map[string]*Item)
}

// Dedupe removes repeated ids (keeping the first) and rebuilds the id index
// from the rendered order. It returns the number of items removed.
func (t *Timeline) Dedupe() int {
	seen := make(map[string]struct{}, len(t.items))
	kept := t.items[:0]
	removed := 0
	for _, item := range t.items {
		if _, dup := seen[item.ID()]; dup {
			removed++
			continue
		}
		seen[item.ID()] = struct{}{}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(t.items); i++ {
		t.items[i] = nil
	}
	t.items = kept
	t.byID = make(map[string]*Item, len(kept))
	for _, item := range kept {
		t.byID[item.ID()] = item
	}
	return removed
}

// Sections groups items into consecutive calendar days in loc.
func (t *Timeline) Sections(loc *time.Location) []Section {
	if loc == nil {
		loc = time.Local
	}
	var sections []Section
	for _, item := range t.items {
		ts := item.Record.Time().In(loc)
		day := ts.Format("2006-01-02")
		if n := len(sections); n > 0 && sections[n-1].Day == day {
			sections[n-1].Items = append(sections[n-1].Items, item)
			continue
		}
		start := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
		sections = append(sections, Section{Day: day, Date: start, Items: []*Item{item}})
	}
	return sections
}
