package feed

import (
	"github.com/adamavenir/frayfeed/internal/types"
)

// RouteAction is what the router did with an event.
type RouteAction string

const (
	RouteInserted      RouteAction = "inserted"
	RouteReconciled    RouteAction = "reconciled"
	RouteRemoved       RouteAction = "removed"
	RouteThreadUpdated RouteAction = "thread_updated"
	// RouteCounted means the event belonged to another channel and only
	// touched the out-of-view unread counters.
	RouteCounted RouteAction = "counted"
	// RouteDeferred means a live post arrived while the feed is scrolled away
	// from the newest boundary; it will arrive with the next newer page.
	RouteDeferred RouteAction = "deferred"
	RouteDropped  RouteAction = "dropped"
)

// RouteResult reports the outcome of HandleEvent.
type RouteResult struct {
	Action    RouteAction
	MessageID string
	Reason    string
}

func dropped(id, reason string) RouteResult {
	return RouteResult{Action: RouteDropped, MessageID: id, Reason: reason}
}

// HandleEvent routes one push-channel event into the feed.
func (e *Engine) HandleEvent(ev types.PushEvent) RouteResult {
	var res RouteResult
	switch {
	case e.channel == "":
		res = dropped(ev.ID, "no_channel")
	case ev.IsDelete():
		res = e.handleDeleted(ev)
	case ev.Type == types.EventMessagePosted || ev.Type == types.EventThreadMessagePosted:
		res = e.handlePosted(ev)
	default:
		res = dropped(ev.ID, "unknown_type")
	}
	if res.Action == RouteDropped {
		e.metrics.EventDropped(res.Reason)
		e.log.Debug("event_dropped", "type", string(ev.Type), "id", res.MessageID, "reason", res.Reason)
	}
	return res
}

func (e *Engine) handlePosted(ev types.PushEvent) RouteResult {
	if ev.Payload == nil {
		return dropped(ev.ID, "missing_payload")
	}
	rec := *ev.Payload
	if rec.ID == "" {
		rec.ID = ev.ID
	}
	if ev.ChannelID != "" {
		rec.ChannelID = ev.ChannelID
	}
	id := rec.ID
	isReply := ev.Scope() == types.ScopeThread || rec.ParentID != ""

	if id != "" {
		if (isReply && e.replies.IsDisplayed(id)) || (!isReply && e.identity.IsDisplayed(id)) {
			return dropped(id, "duplicate")
		}
		if e.recentlySent.Held(id) {
			return dropped(id, "recently_sent")
		}
	}

	self := e.isSelf(rec)
	if rec.ChannelID != "" && rec.ChannelID != e.channel {
		if !self {
			e.outOfView[rec.ChannelID]++
		}
		return RouteResult{Action: RouteCounted, MessageID: id}
	}
	rec.ChannelID = e.channel

	if self && id != "" {
		if ps := e.matchPending(rec); ps != nil {
			e.reconcile(ps, rec)
			return RouteResult{Action: RouteReconciled, MessageID: id}
		}
	}

	if id == "" || rec.Content == "" || (rec.AuthorName == "" && rec.AuthorID == "") {
		e.log.Warn("event_incomplete", "type", string(ev.Type), "id", id)
		return dropped(id, "incomplete")
	}
	if isReply {
		if rec.ParentID == "" {
			return dropped(id, "missing_parent")
		}
		return e.insertReply(rec, self)
	}

	if !e.scroll.HasReachedNewest {
		e.newerAvailable++
		return RouteResult{Action: RouteDeferred, MessageID: id}
	}
	item := e.newItem(rec, false)
	if !e.timeline.Append(item) {
		return dropped(id, "duplicate")
	}
	e.identity.MarkDisplayed(id)
	e.scroll.NewestID = id
	if item.Unread {
		e.unreadInView++
	}
	e.metrics.MessageInserted("live")
	e.hooks.Emit(HookEvent{Name: HookMessageAdded, ChannelID: e.channel, MessageID: id, Message: &item.Record, Self: self})
	return RouteResult{Action: RouteInserted, MessageID: id}
}

func (e *Engine) insertReply(rec types.MessageRecord, self bool) RouteResult {
	e.replies.MarkDisplayed(rec.ID)
	e.threads.QueueUpdate(rec.ParentID, e.nextSummary(rec.ParentID, 1, &rec, self), SourcePush)

	action := RouteThreadUpdated
	if e.thread != nil && e.thread.ParentID == rec.ParentID {
		item := e.newItem(rec, true)
		if e.thread.Timeline.Append(item) {
			e.thread.Identity.MarkDisplayed(rec.ID)
			action = RouteInserted
		}
	}
	e.metrics.MessageInserted("live_reply")
	e.hooks.Emit(HookEvent{Name: HookMessageAdded, ChannelID: e.channel, MessageID: rec.ID, Message: &rec, Self: self})
	return RouteResult{Action: action, MessageID: rec.ID}
}

// nextSummary derives a push-priority summary from the cached one (or the
// parent's rendered counts) adjusted by delta replies.
func (e *Engine) nextSummary(parentID string, delta int, reply *types.MessageRecord, self bool) types.ThreadSummary {
	cur, ok := e.threads.Get(parentID)
	if !ok {
		if parent, found := e.timeline.Get(parentID); found {
			cur.Total = parent.Record.ThreadCount
			cur.Unread = parent.Record.ThreadUnreadCount
		}
	}
	cur.Avatars = append([]string(nil), cur.Avatars...)
	cur.Total += delta
	if cur.Total < 0 {
		cur.Total = 0
	}
	switch {
	case delta > 0 && !self:
		cur.Unread++
	case delta < 0 && reply != nil && e.read.Get(reply.ID, true) == types.ReadStatusNone && !self:
		cur.Unread--
	}
	if cur.Unread < 0 {
		cur.Unread = 0
	}
	if cur.Unread > cur.Total {
		cur.Unread = cur.Total
	}
	if delta > 0 && reply != nil {
		cur.LatestReply = &types.ReplyPreview{
			ID:         reply.ID,
			AuthorName: reply.AuthorName,
			Content:    reply.Content,
			CreatedAt:  reply.CreatedAt,
		}
		cur.Avatars = addAvatar(cur.Avatars, reply.AuthorName)
	}
	if delta < 0 && reply != nil && cur.LatestReply != nil && cur.LatestReply.ID == reply.ID {
		cur.LatestReply = nil
	}
	cur.Timestamp = e.now().UnixMilli()
	cur.Priority = types.ThreadPriorityHigh
	cur.Confirmed = true
	cur.ChannelID = e.channel
	return cur
}

const maxAvatars = 3

func addAvatar(avatars []string, name string) []string {
	if name == "" {
		return avatars
	}
	out := []string{name}
	for _, a := range avatars {
		if a != name && len(out) < maxAvatars {
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) handleDeleted(ev types.PushEvent) RouteResult {
	id := ev.ID
	if id == "" && ev.Payload != nil {
		id = ev.Payload.ID
	}
	if id == "" {
		return dropped("", "missing_id")
	}
	if !e.deleteLocks.TryAcquire(id, e.opts.DeleteLockTTL) {
		return dropped(id, "locked")
	}
	if _, mine := e.localDeletes[id]; mine {
		return dropped(id, "local_delete")
	}
	channel := ev.ChannelID
	if channel == "" && ev.Payload != nil {
		channel = ev.Payload.ChannelID
	}
	if channel != "" && channel != e.channel {
		e.recordDeleted(id)
		return RouteResult{Action: RouteCounted, MessageID: id}
	}

	loc, ok := e.resolve(id)
	if !ok {
		if e.alreadyDeleted(id) {
			return dropped(id, "already_deleted")
		}
		e.recordDeleted(id)
		parentID := ""
		if ev.Payload != nil {
			parentID = ev.Payload.ParentID
		}
		if parentID != "" && (ev.Scope() == types.ScopeThread || e.replies.IsDisplayed(id)) {
			e.replies.Remove(id)
			e.threads.QueueUpdate(parentID, e.nextSummary(parentID, -1, &types.MessageRecord{ID: id}, false), SourcePush)
			return RouteResult{Action: RouteThreadUpdated, MessageID: id}
		}
		if _, cached := e.threads.Get(id); cached {
			e.threads.Evict(id)
		}
		return dropped(id, "not_displayed")
	}

	e.removeAt(loc, "live")
	e.recordDeleted(id)
	return RouteResult{Action: RouteRemoved, MessageID: loc.itemID}
}

type itemLocation struct {
	timeline *Timeline
	identity *IdentityTracker
	itemID   string
	isThread bool
}

// resolve finds the rendered item for id: exact id in the main view, exact id
// in the thread view, then via the temp-id mapping, then by scanning pending
// sends for a matching canonical id.
func (e *Engine) resolve(id string) (itemLocation, bool) {
	candidates := []string{id}
	for temp, real := range e.tempToReal {
		if real == id {
			candidates = append(candidates, temp)
		}
	}
	if ps := e.pendingByReal(id); ps != nil {
		candidates = append(candidates, ps.TempID)
	}
	for _, candidate := range candidates {
		if _, ok := e.timeline.Get(candidate); ok {
			return itemLocation{e.timeline, e.identity, candidate, false}, true
		}
		if e.thread != nil {
			if _, ok := e.thread.Timeline.Get(candidate); ok {
				return itemLocation{e.thread.Timeline, e.thread.Identity, candidate, true}, true
			}
		}
	}
	return itemLocation{}, false
}

func (e *Engine) alreadyDeleted(id string) bool {
	_, ok := e.recentlyDeleted()[id]
	return ok
}

// removeAt removes the item and everything hanging off it: its unread badge,
// its parent's reply count, its own thread summary and an open thread view
// rooted at it. Date separators are derived from the timeline, so an emptied
// day disappears in the same step.
func (e *Engine) removeAt(loc itemLocation, source string) (*Item, int) {
	item, idx, ok := loc.timeline.Remove(loc.itemID)
	if !ok {
		return nil, -1
	}
	loc.identity.Remove(loc.itemID)
	if item.Unread && !loc.isThread && e.unreadInView > 0 {
		e.unreadInView--
	}
	if ps := e.pendingByTemp(loc.itemID); ps != nil {
		e.dropPending(ps.TempID)
	}

	rec := item.Record
	if rec.ParentID != "" {
		e.replies.Remove(rec.ID)
		e.threads.QueueUpdate(rec.ParentID, e.nextSummary(rec.ParentID, -1, &rec, e.isSelf(rec)), SourcePush)
	} else {
		if _, cached := e.threads.Get(rec.ID); cached || item.Thread != nil {
			e.threads.Evict(rec.ID)
		}
		if e.thread != nil && e.thread.ParentID == rec.ID {
			e.thread = nil
		}
	}
	if !loc.isThread {
		if e.scroll.NewestID == rec.ID {
			if last, ok := e.timeline.Last(); ok {
				e.scroll.NewestID = last.ID()
			}
		}
		if e.scroll.OldestID == rec.ID {
			if first, ok := e.timeline.First(); ok {
				e.scroll.OldestID = first.ID()
			}
		}
	}

	e.log.Info("message_removed", "id", rec.ID, "source", source)
	e.metrics.MessageRemoved(source)
	e.hooks.Emit(HookEvent{Name: HookMessageRemoved, ChannelID: e.channel, MessageID: rec.ID, Message: &rec, Self: e.isSelf(rec)})
	return item, idx
}

// DeleteRequest is an in-flight user-initiated delete.
type DeleteRequest struct {
	ID    string
	Epoch uint64
	// LocalOnly is set for unconfirmed sends, which have nothing to delete
	// on the backend.
	LocalOnly bool

	item     *Item
	index    int
	isThread bool
}

// DeleteResult reports how a user delete completed.
type DeleteResult struct {
	Kind     OutcomeKind
	Restored bool
	Stale    bool
	Notice   string
}

// DeleteMessage optimistically removes id and returns the request to issue.
func (e *Engine) DeleteMessage(id string) (*DeleteRequest, error) {
	loc, ok := e.resolve(id)
	if !ok {
		return nil, ErrNotDisplayed
	}
	if !e.deleteLocks.TryAcquire(id, e.opts.DeleteLockTTL) {
		return nil, ErrDeleteInProgress
	}
	localOnly := e.isPendingID(loc.itemID)
	item, idx := e.removeAt(loc, "user")
	req := &DeleteRequest{
		ID:        item.ID(),
		Epoch:     e.epoch,
		LocalOnly: localOnly,
		item:      item,
		index:     idx,
		isThread:  loc.isThread,
	}
	if !localOnly {
		e.localDeletes[req.ID] = struct{}{}
	}
	return req, nil
}

// CompleteDelete applies the backend's answer to a user delete. A rejection
// puts the item back where it was; a transient failure keeps it removed.
func (e *Engine) CompleteDelete(req *DeleteRequest, out Outcome[struct{}]) DeleteResult {
	res := DeleteResult{Kind: out.Kind}
	if req.Epoch != e.epoch {
		res.Stale = true
		return res
	}
	delete(e.localDeletes, req.ID)
	switch out.Kind {
	case OutcomeOK:
		e.recordDeleted(req.ID)
	case OutcomeRetryable:
		e.recordDeleted(req.ID)
		res.Notice = "delete not confirmed; it will sync when the server catches up"
		e.log.Warn("delete_unconfirmed", "id", req.ID, "error", out.Err)
	case OutcomeFatal:
		res.Restored = e.restoreItem(req)
		if out.Err != nil {
			res.Notice = out.Err.Error()
		}
		e.log.Warn("delete_rejected", "id", req.ID, "restored", res.Restored, "error", out.Err)
	}
	return res
}

func (e *Engine) restoreItem(req *DeleteRequest) bool {
	tl, ident := e.timeline, e.identity
	if req.isThread {
		if e.thread == nil || e.thread.ParentID != req.item.Record.ParentID {
			return false
		}
		tl, ident = e.thread.Timeline, e.thread.Identity
	}
	if ident.IsDisplayed(req.ID) || !tl.InsertAt(req.index, req.item) {
		return false
	}
	ident.MarkDisplayed(req.ID)
	if req.item.Unread && !req.isThread {
		e.unreadInView++
	}
	rec := req.item.Record
	if rec.ParentID != "" {
		e.replies.MarkDisplayed(rec.ID)
		e.threads.QueueUpdate(rec.ParentID, e.nextSummary(rec.ParentID, 1, nil, true), SourcePush)
	}
	e.hooks.Emit(HookEvent{Name: HookMessageAdded, ChannelID: e.channel, MessageID: rec.ID, Message: &rec, Self: e.isSelf(rec)})
	return true
}
