package feed

import (
	"strings"
	"time"

	"github.com/adamavenir/frayfeed/internal/core"
	"github.com/adamavenir/frayfeed/internal/types"
)

// SendState is the lifecycle of an optimistic send.
type SendState string

const (
	SendPending          SendState = "pending"
	SendConfirmed        SendState = "confirmed"
	SendPersistedPending SendState = "persisted_pending"
	SendRolledBack       SendState = "rolled_back"
)

// echoSkew bounds how far before a send a matching fetched record may be
// timestamped and still count as its echo.
const echoSkew = 2 * time.Minute

// PendingSend is a locally rendered message awaiting confirmation.
type PendingSend struct {
	TempID    string
	RealID    string
	ChannelID string
	ParentID  string
	Content   string
	State     SendState
	StartedAt time.Time
	epoch     uint64
}

// SendRequest is what the caller submits to the backend.
type SendRequest struct {
	TempID    string
	ChannelID string
	ParentID  string
	Content   string
	Epoch     uint64
}

// SendResult reports how a send completed.
type SendResult struct {
	Kind   OutcomeKind
	TempID string
	RealID string
	// Draft is the content to restore into the composer after a rollback.
	Draft  string
	Notice string
	Stale  bool
	// AlreadyReconciled is set when a live echo confirmed the send first.
	AlreadyReconciled bool
}

// Pending returns the sends still awaiting reconciliation.
func (e *Engine) Pending() []*PendingSend {
	return append([]*PendingSend(nil), e.pending...)
}

// BeginSend renders content as a pending item and returns the request to issue.
func (e *Engine) BeginSend(content, parentID string) (*SendRequest, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if e.channel == "" {
		return nil, ErrNoChannel
	}
	now := e.now()
	ps := &PendingSend{
		TempID:    core.NewTempID(),
		ChannelID: e.channel,
		ParentID:  parentID,
		Content:   content,
		State:     SendPending,
		StartedAt: now,
		epoch:     e.epoch,
	}
	rec := types.MessageRecord{
		ID:         ps.TempID,
		ChannelID:  e.channel,
		AuthorID:   e.opts.UserID,
		AuthorName: e.opts.UserName,
		CreatedAt:  now.UnixMilli(),
		Content:    content,
		ParentID:   parentID,
	}
	item := &Item{Record: rec, State: ItemPending}
	switch {
	case parentID == "":
		e.timeline.Append(item)
		e.identity.MarkDisplayed(ps.TempID)
	case e.thread != nil && e.thread.ParentID == parentID:
		e.thread.Timeline.Append(item)
		e.thread.Identity.MarkDisplayed(ps.TempID)
	}
	e.pending = append(e.pending, ps)

	e.log.Debug("send_pending", "temp_id", ps.TempID, "parent", parentID)
	e.hooks.Emit(HookEvent{Name: HookSendPending, ChannelID: e.channel, MessageID: ps.TempID, Message: &rec, Self: true})
	return &SendRequest{TempID: ps.TempID, ChannelID: e.channel, ParentID: parentID, Content: content, Epoch: e.epoch}, nil
}

// CompleteSend applies the backend's answer to a send.
func (e *Engine) CompleteSend(req *SendRequest, out Outcome[types.MessageRecord]) SendResult {
	res := SendResult{Kind: out.Kind, TempID: req.TempID}
	if req.Epoch != e.epoch {
		res.Stale = true
		e.metrics.EventDropped("stale_send")
		return res
	}
	ps := e.pendingByTemp(req.TempID)

	switch out.Kind {
	case OutcomeOK:
		rec := out.Value
		if rec.ID == "" {
			rec.ID = e.tempToReal[req.TempID]
		}
		res.RealID = rec.ID
		if ps == nil {
			res.AlreadyReconciled = true
			if rec.ID != "" {
				e.recentlySent.Set(rec.ID, e.opts.RecentlySentTTL)
			}
			break
		}
		if rec.ID == "" {
			e.persist(ps, "send confirmed without an id; will reconcile from the feed")
			res.Kind = OutcomeRetryable
			res.Notice = "message sent, waiting for confirmation"
			break
		}
		fillSelf(&rec, ps, e.opts)
		e.reconcile(ps, rec)

	case OutcomeRetryable:
		if ps == nil {
			res.AlreadyReconciled = true
			break
		}
		res.Notice = "message not confirmed yet; it will sync when the server catches up"
		e.persist(ps, res.Notice)

	case OutcomeFatal:
		if ps == nil {
			res.AlreadyReconciled = true
			break
		}
		ps.State = SendRolledBack
		e.dropPending(ps.TempID)
		e.removeTemp(ps.TempID)
		res.Draft = ps.Content
		if out.Err != nil {
			res.Notice = out.Err.Error()
		}
		e.log.Warn("send_rolled_back", "temp_id", ps.TempID, "error", out.Err)
		e.hooks.Emit(HookEvent{Name: HookSendRolledBack, ChannelID: e.channel, MessageID: ps.TempID, Notice: ps.Content, Self: true})
	}
	e.metrics.SendCompleted(res.Kind.String())
	return res
}

func fillSelf(rec *types.MessageRecord, ps *PendingSend, opts Options) {
	if rec.ChannelID == "" {
		rec.ChannelID = ps.ChannelID
	}
	if rec.AuthorID == "" {
		rec.AuthorID = opts.UserID
	}
	if rec.AuthorName == "" {
		rec.AuthorName = opts.UserName
	}
	if rec.Content == "" {
		rec.Content = ps.Content
	}
	if rec.ParentID == "" {
		rec.ParentID = ps.ParentID
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = ps.StartedAt.UnixMilli()
	}
}

func (e *Engine) persist(ps *PendingSend, notice string) {
	ps.State = SendPersistedPending
	for _, tl := range e.timelines() {
		if item, ok := tl.Get(ps.TempID); ok {
			item.State = ItemPersistedPending
		}
	}
	e.log.Warn("send_persisted_pending", "temp_id", ps.TempID)
	e.hooks.Emit(HookEvent{Name: HookSendPending, ChannelID: e.channel, MessageID: ps.TempID, Notice: notice, Self: true})
}

// reconcile confirms ps as rec: the temp item is renamed in place so it keeps
// its position, and rec.ID joins the recently-sent set so a late echo is
// suppressed.
func (e *Engine) reconcile(ps *PendingSend, rec types.MessageRecord) {
	ps.RealID = rec.ID
	ps.State = SendConfirmed
	e.tempToReal[ps.TempID] = rec.ID
	e.recentlySent.Set(rec.ID, e.opts.RecentlySentTTL)
	e.dropPending(ps.TempID)

	rec.ReadStatus = types.ReadStatusFullyRead
	renamed := false
	if e.identity.IsDisplayed(rec.ID) {
		// The canonical record is already shown; the temp copy is redundant.
		if _, _, ok := e.timeline.Remove(ps.TempID); ok {
			e.identity.Remove(ps.TempID)
		}
	} else if e.timeline.RewriteID(ps.TempID, rec.ID, &rec) {
		item, _ := e.timeline.Get(rec.ID)
		item.State = ItemConfirmed
		e.identity.Remove(ps.TempID)
		e.identity.MarkDisplayed(rec.ID)
		renamed = true
	}
	if e.thread != nil {
		if e.thread.Identity.IsDisplayed(rec.ID) {
			e.thread.Timeline.Remove(ps.TempID)
			e.thread.Identity.Remove(ps.TempID)
		} else if e.thread.Timeline.RewriteID(ps.TempID, rec.ID, &rec) {
			item, _ := e.thread.Timeline.Get(rec.ID)
			item.State = ItemConfirmed
			e.thread.Identity.Remove(ps.TempID)
			e.thread.Identity.MarkDisplayed(rec.ID)
			renamed = true
		}
	}
	if rec.ParentID != "" && !e.replies.IsDisplayed(rec.ID) {
		e.replies.MarkDisplayed(rec.ID)
		e.threads.QueueUpdate(rec.ParentID, e.nextSummary(rec.ParentID, 1, &rec, true), SourcePush)
	}
	if renamed && rec.ParentID == "" && e.isLast(rec.ID) {
		e.scroll.NewestID = rec.ID
	}

	e.log.Info("send_confirmed", "temp_id", ps.TempID, "id", rec.ID)
	e.hooks.Emit(HookEvent{Name: HookMessageConfirmed, ChannelID: e.channel, MessageID: rec.ID, Message: &rec, Notice: ps.TempID, Self: true})
}

func (e *Engine) isLast(id string) bool {
	last, ok := e.timeline.Last()
	return ok && last.ID() == id
}

// matchPending finds the oldest pending send that rec could be the echo of.
func (e *Engine) matchPending(rec types.MessageRecord) *PendingSend {
	for _, ps := range e.pending {
		if ps.ChannelID != rec.ChannelID && rec.ChannelID != "" {
			continue
		}
		if ps.ParentID != rec.ParentID {
			continue
		}
		if strings.TrimSpace(ps.Content) != strings.TrimSpace(rec.Content) {
			continue
		}
		if rec.CreatedAt != 0 && rec.CreatedAt < ps.StartedAt.Add(-echoSkew).UnixMilli() {
			continue
		}
		return ps
	}
	return nil
}

func (e *Engine) pendingByTemp(tempID string) *PendingSend {
	for _, ps := range e.pending {
		if ps.TempID == tempID {
			return ps
		}
	}
	return nil
}

func (e *Engine) pendingByReal(realID string) *PendingSend {
	for _, ps := range e.pending {
		if ps.RealID != "" && ps.RealID == realID {
			return ps
		}
	}
	return nil
}

func (e *Engine) dropPending(tempID string) {
	for i, ps := range e.pending {
		if ps.TempID == tempID {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

func (e *Engine) removeTemp(tempID string) {
	if _, _, ok := e.timeline.Remove(tempID); ok {
		e.identity.Remove(tempID)
	}
	if e.thread != nil {
		if _, _, ok := e.thread.Timeline.Remove(tempID); ok {
			e.thread.Identity.Remove(tempID)
		}
	}
}

func (e *Engine) isPendingID(id string) bool {
	if !core.IsTempID(id) {
		return false
	}
	return e.pendingByTemp(id) != nil
}

// pendingItems returns the rendered main-feed items of unconfirmed sends.
func (e *Engine) pendingItems() []*Item {
	var items []*Item
	for _, ps := range e.pending {
		if ps.ParentID != "" {
			continue
		}
		if item, ok := e.timeline.Get(ps.TempID); ok {
			items = append(items, item)
		}
	}
	return items
}

func (e *Engine) timelines() []*Timeline {
	if e.thread != nil {
		return []*Timeline{e.timeline, e.thread.Timeline}
	}
	return []*Timeline{e.timeline}
}
