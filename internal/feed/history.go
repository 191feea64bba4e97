package feed

import (
	"sort"
	"time"

	"github.com/adamavenir/frayfeed/internal/types"
)

// ScrollState is owned by the history loader and reset on channel switch.
type ScrollState struct {
	OldestID         string
	NewestID         string
	HasReachedEnd    bool
	HasReachedNewest bool
	IsLoading        bool
	IsLocked         bool
	LastLoadTime     time.Time
	// ProcessedBefore holds boundary ids an older-load was already issued for.
	ProcessedBefore map[string]bool
	ProcessedAfter  map[string]bool
	LoadCount       int
}

func newScrollState() ScrollState {
	return ScrollState{
		ProcessedBefore: make(map[string]bool),
		ProcessedAfter:  make(map[string]bool),
	}
}

// LoadDirection is which way a history load goes.
type LoadDirection string

const (
	LoadNone  LoadDirection = ""
	LoadOlder LoadDirection = "older"
	LoadNewer LoadDirection = "newer"
)

// HistoryRequest is an in-flight page fetch.
type HistoryRequest struct {
	Direction LoadDirection
	Query     types.PageQuery
	Anchors   AnchorSet
	Epoch     uint64
	StartedAt time.Time
}

// LoadResult reports what a completed page fetch did to the feed.
type LoadResult struct {
	Stale      bool
	Err        error
	Kind       OutcomeKind
	Returned   int
	Inserted   int
	ReachedEnd bool
	Restore    *RestoreReport
}

// RestoreReport describes a scroll restoration.
type RestoreReport struct {
	Restore
	Attempts int
	Verified bool
}

// DisplayOptions describes a page passed to DisplayMessages.
type DisplayOptions struct {
	// Limit is the requested page size; a shorter page is the start of history.
	Limit int
	// Newest says the page ends at the newest message in the channel.
	Newest    bool
	FetchedAt time.Time
}

// Lock blocks history loads, for example while the renderer is animating.
func (e *Engine) Lock() {
	e.scroll.IsLocked = true
}

func (e *Engine) Unlock() {
	e.scroll.IsLocked = false
}

// DisplayMessages replaces the feed with page. Used for the initial load and
// for jumps. Pending sends stay at the bottom.
func (e *Engine) DisplayMessages(page []types.MessageRecord, opts DisplayOptions) int {
	page = sortRecords(append([]types.MessageRecord(nil), page...))
	pendingItems := e.pendingItems()

	e.timeline.Reset()
	e.identity.Clear()
	e.scroll = newScrollState()
	e.endShown = false
	e.newerAvailable = 0

	items := e.filterPage(page)
	for _, item := range items {
		e.timeline.Append(item)
		e.identity.MarkDisplayed(item.ID())
	}
	for _, item := range pendingItems {
		if e.timeline.Append(item) {
			e.identity.MarkDisplayed(item.ID())
		}
	}
	e.recountUnread()

	if len(page) > 0 {
		e.scroll.OldestID = page[0].ID
		e.scroll.NewestID = page[len(page)-1].ID
	}
	e.scroll.HasReachedNewest = opts.Newest
	if opts.Limit > 0 && len(page) < opts.Limit {
		e.markEnd()
	}

	fetchedAt := opts.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = e.now()
	}
	e.cacheThreadCounts(items, fetchedAt)

	e.log.Info("messages_displayed", "channel", e.channel, "count", len(items), "newest", opts.Newest)
	e.hooks.Emit(HookEvent{Name: HookMessagesDisplayed, ChannelID: e.channel, Count: len(items)})

	if e.viewport != nil && opts.Newest {
		e.viewport.ScrollTo(e.viewport.Layout().MaxScroll())
	}
	return len(items)
}

// OnScroll inspects the viewport and returns the load the position calls for.
func (e *Engine) OnScroll() LoadDirection {
	if e.viewport == nil || e.channel == "" {
		return LoadNone
	}
	layout := e.viewport.Layout()
	if layout.ScrollTop <= e.opts.TopThreshold && !e.scroll.HasReachedEnd {
		return LoadOlder
	}
	if layout.DistanceToBottom() <= e.opts.BottomThreshold && !e.scroll.HasReachedNewest {
		return LoadNewer
	}
	return LoadNone
}

func (e *Engine) canLoad(direction LoadDirection) bool {
	if e.channel == "" || e.scroll.IsLoading || e.scroll.IsLocked {
		return false
	}
	if !e.scroll.LastLoadTime.IsZero() && e.now().Sub(e.scroll.LastLoadTime) < e.opts.MinLoadInterval {
		return false
	}
	switch direction {
	case LoadOlder:
		return !e.scroll.HasReachedEnd && e.scroll.OldestID != "" && !e.scroll.ProcessedBefore[e.scroll.OldestID]
	case LoadNewer:
		return !e.scroll.HasReachedNewest && e.scroll.NewestID != "" && !e.scroll.ProcessedAfter[e.scroll.NewestID]
	}
	return false
}

// BeginLoadOlder checks the guards and, if they pass, marks the loader busy,
// captures the visual anchors and returns the request to issue.
func (e *Engine) BeginLoadOlder() (*HistoryRequest, bool) {
	if !e.canLoad(LoadOlder) {
		return nil, false
	}
	boundary := e.scroll.OldestID
	e.scroll.IsLoading = true
	e.scroll.ProcessedBefore[boundary] = true
	e.scroll.LoadCount++

	req := &HistoryRequest{
		Direction: LoadOlder,
		Query:     types.PageQuery{ChannelID: e.channel, BeforeID: boundary, Limit: e.opts.PageSize},
		Epoch:     e.epoch,
		StartedAt: e.now(),
	}
	if e.viewport != nil {
		req.Anchors = CaptureAnchors(e.viewport.Layout(), e.isPendingID)
	}
	e.log.Debug("history_load_started", "direction", "older", "before", boundary)
	return req, true
}

// BeginLoadNewer is the mirror of BeginLoadOlder; no anchors are captured.
func (e *Engine) BeginLoadNewer() (*HistoryRequest, bool) {
	if !e.canLoad(LoadNewer) {
		return nil, false
	}
	boundary := e.scroll.NewestID
	e.scroll.IsLoading = true
	e.scroll.ProcessedAfter[boundary] = true
	e.scroll.LoadCount++
	e.log.Debug("history_load_started", "direction", "newer", "after", boundary)
	return &HistoryRequest{
		Direction: LoadNewer,
		Query:     types.PageQuery{ChannelID: e.channel, AfterID: boundary, Limit: e.opts.PageSize},
		Epoch:     e.epoch,
		StartedAt: e.now(),
	}, true
}

// CompleteLoadOlder applies a fetched older page: dedup, prepend, then
// restore the scroll position so the anchor item stays put.
func (e *Engine) CompleteLoadOlder(req *HistoryRequest, out Outcome[[]types.MessageRecord]) LoadResult {
	if req == nil || req.Epoch != e.epoch {
		e.metrics.EventDropped("stale_page")
		return LoadResult{Stale: true}
	}
	defer e.releaseLoad()

	res := LoadResult{Kind: out.Kind}
	if out.Kind != OutcomeOK {
		delete(e.scroll.ProcessedBefore, req.Query.BeforeID)
		e.log.Warn("history_load_failed", "direction", "older", "before", req.Query.BeforeID, "kind", out.Kind.String(), "error", out.Err)
		res.Err = out.Err
		return res
	}

	page := sortRecords(append([]types.MessageRecord(nil), out.Value...))
	res.Returned = len(page)
	items := e.filterPage(page)

	if len(page) > 0 {
		e.scroll.OldestID = page[0].ID
	}
	if len(page) < req.Query.Limit {
		e.markEnd()
		res.ReachedEnd = true
	}
	if len(items) == 0 {
		e.metrics.HistoryLoaded("older", 0)
		return res
	}

	// Lock for the restore, keeping any lock the renderer already holds.
	wasLocked := e.scroll.IsLocked
	e.scroll.IsLocked = true
	res.Inserted = e.timeline.Prepend(items)
	for _, item := range items {
		e.identity.MarkDisplayed(item.ID())
		if item.Unread {
			e.unreadInView++
		}
	}
	e.cacheThreadCounts(items, req.StartedAt)
	if e.viewport != nil {
		res.Restore = e.restoreScroll(req.Anchors, req.Query.Limit, res.Inserted)
	}
	e.scroll.IsLocked = wasLocked

	e.log.Info("history_loaded", "direction", "older", "count", res.Inserted, "returned", res.Returned, "reached_end", res.ReachedEnd)
	e.metrics.HistoryLoaded("older", res.Inserted)
	e.hooks.Emit(HookEvent{Name: HookMessagesDisplayed, ChannelID: e.channel, Count: res.Inserted})
	return res
}

// CompleteLoadNewer appends a fetched newer page. New content lands below the
// fold, so no scroll correction is needed.
func (e *Engine) CompleteLoadNewer(req *HistoryRequest, out Outcome[[]types.MessageRecord]) LoadResult {
	if req == nil || req.Epoch != e.epoch {
		e.metrics.EventDropped("stale_page")
		return LoadResult{Stale: true}
	}
	defer e.releaseLoad()

	res := LoadResult{Kind: out.Kind}
	if out.Kind != OutcomeOK {
		delete(e.scroll.ProcessedAfter, req.Query.AfterID)
		e.log.Warn("history_load_failed", "direction", "newer", "after", req.Query.AfterID, "kind", out.Kind.String(), "error", out.Err)
		res.Err = out.Err
		return res
	}

	page := sortRecords(append([]types.MessageRecord(nil), out.Value...))
	res.Returned = len(page)
	items := e.filterPage(page)
	for _, item := range items {
		if e.timeline.Append(item) {
			e.identity.MarkDisplayed(item.ID())
			res.Inserted++
			if item.Unread {
				e.unreadInView++
			}
		}
	}
	if len(page) > 0 {
		e.scroll.NewestID = page[len(page)-1].ID
	}
	if len(page) < req.Query.Limit {
		e.scroll.HasReachedNewest = true
		e.newerAvailable = 0
		res.ReachedEnd = true
	}
	e.cacheThreadCounts(items, req.StartedAt)

	e.log.Info("history_loaded", "direction", "newer", "count", res.Inserted, "returned", res.Returned, "reached_newest", res.ReachedEnd)
	e.metrics.HistoryLoaded("newer", res.Inserted)
	if res.Inserted > 0 {
		e.hooks.Emit(HookEvent{Name: HookMessagesDisplayed, ChannelID: e.channel, Count: res.Inserted})
	}
	return res
}

func (e *Engine) releaseLoad() {
	e.scroll.IsLoading = false
	e.scroll.LastLoadTime = e.now()
}

func (e *Engine) markEnd() {
	e.scroll.HasReachedEnd = true
	if e.endShown {
		return
	}
	e.endShown = true
	e.log.Info("history_end", "channel", e.channel)
	e.hooks.Emit(HookEvent{Name: HookHistoryEnd, ChannelID: e.channel})
}

// EndShown reports whether the end-of-history marker is displayed.
func (e *Engine) EndShown() bool {
	return e.endShown
}

// restoreScroll applies the computed offset and re-measures, retrying while
// layout is still settling.
func (e *Engine) restoreScroll(anchors AnchorSet, expected, actual int) *RestoreReport {
	params := RestoreParams{
		Expected:      expected,
		Actual:        actual,
		Padding:       e.opts.FixedPadding,
		AvgItemHeight: e.opts.AvgItemHeight,
	}
	report := &RestoreReport{}
	for attempt := 1; attempt <= 1+e.opts.RestoreRetries; attempt++ {
		r := ComputeRestoreOffset(anchors, e.viewport.Layout(), params)
		e.viewport.ScrollTo(r.Offset)
		report.Restore = r
		report.Attempts = attempt
		if VerifyRestore(r, e.viewport.Layout(), e.opts.RestoreTolerance) {
			report.Verified = true
			break
		}
	}
	if !report.Verified {
		e.log.Debug("scroll_restore_unverified", "method", string(report.Method), "anchor", report.AnchorID, "attempts", report.Attempts)
	}
	e.metrics.ScrollRestored(string(report.Method), report.Attempts)
	return report
}

// filterPage drops recently deleted and already displayed records, and
// reconciles records that confirm one of our pending sends.
func (e *Engine) filterPage(page []types.MessageRecord) []*Item {
	deleted := e.recentlyDeleted()
	seen := make(map[string]struct{}, len(page))
	items := make([]*Item, 0, len(page))
	for _, rec := range page {
		if rec.ID == "" {
			continue
		}
		if _, gone := deleted[rec.ID]; gone {
			continue
		}
		if _, dup := seen[rec.ID]; dup || e.identity.IsDisplayed(rec.ID) {
			continue
		}
		seen[rec.ID] = struct{}{}
		if e.isSelf(rec) {
			if ps := e.matchPending(rec); ps != nil {
				e.reconcile(ps, rec)
				continue
			}
		}
		items = append(items, e.newItem(rec, false))
	}
	return items
}

func (e *Engine) cacheThreadCounts(items []*Item, fetchedAt time.Time) {
	for _, item := range items {
		rec := item.Record
		if rec.ThreadCount <= 0 {
			continue
		}
		e.threads.QueueUpdate(rec.ID, types.ThreadSummary{
			Total:     rec.ThreadCount,
			Unread:    rec.ThreadUnreadCount,
			Timestamp: fetchedAt.UnixMilli(),
			ChannelID: e.channel,
		}, SourceCache)
	}
}

func sortRecords(records []types.MessageRecord) []types.MessageRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt < records[j].CreatedAt
	})
	return records
}
