package feed

import (
	"sort"
	"strings"
)

// IdentityTracker is the set of message ids currently materialized in a feed.
// It is the single source of truth for "is this message already shown".
type IdentityTracker struct {
	ids map[string]struct{}
}

// NewIdentityTracker returns an empty tracker.
func NewIdentityTracker() *IdentityTracker {
	return &IdentityTracker{ids: make(map[string]struct{})}
}

func (t *IdentityTracker) IsDisplayed(id string) bool {
	_, ok := t.ids[id]
	return ok
}

func (t *IdentityTracker) MarkDisplayed(id string) {
	if id == "" {
		return
	}
	t.ids[id] = struct{}{}
}

func (t *IdentityTracker) Remove(id string) {
	delete(t.ids, id)
}

func (t *IdentityTracker) Clear() {
	t.ids = make(map[string]struct{})
}

func (t *IdentityTracker) Len() int {
	return len(t.ids)
}

// ResyncFromView rebuilds the set from the ids actually rendered and returns
// how many entries changed.
func (t *IdentityTracker) ResyncFromView(rendered []string) int {
	next := make(map[string]struct{}, len(rendered))
	for _, id := range rendered {
		if id != "" {
			next[id] = struct{}{}
		}
	}
	changed := 0
	for id := range t.ids {
		if _, ok := next[id]; !ok {
			changed++
		}
	}
	for id := range next {
		if _, ok := t.ids[id]; !ok {
			changed++
		}
	}
	t.ids = next
	return changed
}

// GroupKey builds the deletion-lock key for a group of messages.
func GroupKey(ids ...string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
