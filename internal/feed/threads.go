package feed

import (
	"time"

	"github.com/adamavenir/frayfeed/internal/core"
	"github.com/adamavenir/frayfeed/internal/types"
)

// UpdateSource says where a thread summary came from.
type UpdateSource string

const (
	// SourcePush is a live thread event; it is authoritative and fences refreshes.
	SourcePush UpdateSource = "push"
	// SourceRefresh is a backend batch refresh.
	SourceRefresh UpdateSource = "refresh"
	// SourceCache is derived from counts embedded in fetched pages.
	SourceCache UpdateSource = "cache"
)

// UpdateResult is what QueueUpdate did with a summary.
type UpdateResult string

const (
	UpdateApplied   UpdateResult = "applied"
	UpdateEvicted   UpdateResult = "evicted"
	UpdateLocked    UpdateResult = "dropped_locked"
	UpdateDiscarded UpdateResult = "discarded_stale"
)

// ThreadCache holds per-parent summaries and renders them onto timeline items.
type ThreadCache struct {
	timeline *Timeline
	entries  map[string]types.ThreadSummary
	locks    *core.ExpiringSet
	lockTTL  time.Duration
	onApply  func(parentID string, summary *types.ThreadSummary)
}

// NewThreadCache returns a cache rendering into timeline. onApply, if set, is
// called after every render with the summary shown (nil when removed).
func NewThreadCache(timeline *Timeline, now func() time.Time, lockTTL time.Duration, onApply func(string, *types.ThreadSummary)) *ThreadCache {
	return &ThreadCache{
		timeline: timeline,
		entries:  make(map[string]types.ThreadSummary),
		locks:    core.NewExpiringSet(now),
		lockTTL:  lockTTL,
		onApply:  onApply,
	}
}

// Get returns the cached summary for parentID.
func (c *ThreadCache) Get(parentID string) (types.ThreadSummary, bool) {
	s, ok := c.entries[parentID]
	return s, ok
}

func (c *ThreadCache) Len() int {
	return len(c.entries)
}

// Locked reports whether a push update is fencing parentID.
func (c *ThreadCache) Locked(parentID string) bool {
	return c.locks.Held(parentID)
}

// QueueUpdate applies summary for parentID unless it is stale.
//
// A held lock drops everything but push updates and force deletes. A cached
// confirmed high-priority entry for the same channel is only replaced by a
// strictly newer timestamp; push updates also win ties since each one is a
// delta computed from the cached value.
func (c *ThreadCache) QueueUpdate(parentID string, summary types.ThreadSummary, source UpdateSource) UpdateResult {
	if c.locks.Held(parentID) && !summary.IsForceDelete() && source != SourcePush {
		return UpdateLocked
	}
	if cur, ok := c.entries[parentID]; ok && cur.Confirmed && cur.Priority == types.ThreadPriorityHigh && cur.ChannelID == summary.ChannelID {
		older := summary.Timestamp < cur.Timestamp || (summary.Timestamp == cur.Timestamp && source != SourcePush)
		if older {
			c.render(parentID, &cur)
			return UpdateDiscarded
		}
	}

	if source == SourcePush {
		c.locks.Set(parentID, c.lockTTL)
	}
	if summary.IsForceDelete() {
		delete(c.entries, parentID)
		c.render(parentID, nil)
		return UpdateEvicted
	}
	c.entries[parentID] = summary
	c.render(parentID, &summary)
	return UpdateApplied
}

// Evict drops parentID and strips its rendered cues.
func (c *ThreadCache) Evict(parentID string) {
	delete(c.entries, parentID)
	c.locks.Release(parentID)
	c.render(parentID, nil)
}

// render removes any existing summary block on the parent item and
// regenerates it from s. Safe to call when the item or block is absent.
func (c *ThreadCache) render(parentID string, s *types.ThreadSummary) {
	item, ok := c.timeline.Get(parentID)
	if ok {
		item.Thread = nil
		if s == nil {
			item.Record.ThreadCount = 0
			item.Record.ThreadUnreadCount = 0
		} else {
			copied := *s
			copied.Avatars = append([]string(nil), s.Avatars...)
			item.Thread = &copied
			item.Record.ThreadCount = s.Total
			item.Record.ThreadUnreadCount = s.Unread
		}
	}
	if c.onApply != nil {
		c.onApply(parentID, s)
	}
}

// Sweep re-asserts cached summaries on items that lost their block and strips
// blocks that have no cache entry. It returns how many items were healed.
func (c *ThreadCache) Sweep() int {
	healed := 0
	for _, item := range c.timeline.Items() {
		cached, ok := c.entries[item.ID()]
		switch {
		case ok && (item.Thread == nil || item.Thread.Total != cached.Total || item.Thread.Unread != cached.Unread):
			c.render(item.ID(), &cached)
			healed++
		case !ok && item.Thread != nil:
			item.Thread = nil
			healed++
		}
	}
	c.locks.Sweep()
	return healed
}

// Reset clears every entry and lock.
func (c *ThreadCache) Reset() {
	c.entries = make(map[string]types.ThreadSummary)
	c.locks.Reset()
}
