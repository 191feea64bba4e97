package feed

import (
	"errors"
	"log/slog"
	"time"

	"github.com/adamavenir/frayfeed/internal/core"
	"github.com/adamavenir/frayfeed/internal/types"
)

var (
	ErrEmptyContent     = errors.New("message content is empty")
	ErrNoChannel        = errors.New("no channel is open")
	ErrNotDisplayed     = errors.New("message is not displayed")
	ErrDeleteInProgress = errors.New("delete already in progress")
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	UserID   string
	UserName string

	PageSize         int
	MinLoadInterval  time.Duration
	TopThreshold     int
	BottomThreshold  int
	RestoreTolerance int
	RestoreRetries   int
	FixedPadding     int
	AvgItemHeight    int

	DeleteLockTTL        time.Duration
	RecentlySentTTL      time.Duration
	ThreadLockTTL        time.Duration
	RecentlyDeletedLimit int

	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  Metrics
	Store    StateStore
	Hooks    *Hooks
	Viewport Viewport
}

// OptionsFromConfig maps the feed section of cfg onto engine options.
func OptionsFromConfig(cfg core.Config) Options {
	return Options{
		UserID:               cfg.UserID,
		UserName:             cfg.UserName,
		PageSize:             cfg.Feed.PageSize,
		MinLoadInterval:      cfg.Feed.MinLoadInterval,
		TopThreshold:         cfg.Feed.TopThreshold,
		BottomThreshold:      cfg.Feed.BottomThreshold,
		RestoreTolerance:     cfg.Feed.RestoreTolerance,
		RestoreRetries:       cfg.Feed.RestoreRetries,
		FixedPadding:         cfg.Feed.FixedPadding,
		DeleteLockTTL:        cfg.Feed.DeleteLockTTL,
		RecentlySentTTL:      cfg.Feed.RecentlySentTTL,
		ThreadLockTTL:        cfg.Feed.ThreadLockTTL,
		RecentlyDeletedLimit: cfg.Feed.RecentlyDeletedLimit,
	}
}

func (o *Options) defaults() {
	if o.PageSize <= 0 {
		o.PageSize = 30
	}
	if o.MinLoadInterval < 0 {
		o.MinLoadInterval = 0
	}
	if o.TopThreshold < 0 {
		o.TopThreshold = 0
	}
	if o.BottomThreshold < 0 {
		o.BottomThreshold = 0
	}
	if o.RestoreTolerance <= 0 {
		o.RestoreTolerance = 15
	}
	if o.RestoreRetries < 0 {
		o.RestoreRetries = 0
	}
	if o.DeleteLockTTL <= 0 {
		o.DeleteLockTTL = 100 * time.Millisecond
	}
	if o.RecentlySentTTL <= 0 {
		o.RecentlySentTTL = 10 * time.Second
	}
	if o.ThreadLockTTL <= 0 {
		o.ThreadLockTTL = 2 * time.Second
	}
	if o.RecentlyDeletedLimit <= 0 {
		o.RecentlyDeletedLimit = 200
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	if o.Store == nil {
		o.Store = NewMemoryStore(o.RecentlyDeletedLimit)
	}
	if o.Hooks == nil {
		o.Hooks = NewHooks()
	}
}

// ThreadView is the open thread panel: a parent and its replies.
type ThreadView struct {
	ParentID string
	Timeline *Timeline
	Identity *IdentityTracker
}

// Engine owns all feed state for one open channel. It is not safe for
// concurrent use; Loop serializes access to it.
type Engine struct {
	opts    Options
	log     *slog.Logger
	metrics Metrics
	hooks   *Hooks
	store   StateStore
	now     func() time.Time

	viewport Viewport

	channel string
	epoch   uint64

	identity *IdentityTracker
	timeline *Timeline
	scroll   ScrollState
	endShown bool
	thread   *ThreadView
	replies  *IdentityTracker

	deleteLocks  *core.ExpiringSet
	recentlySent *core.ExpiringSet
	pending      []*PendingSend
	tempToReal   map[string]string
	localDeletes map[string]struct{}

	threads *ThreadCache
	read    *ReadTracker
	visible map[string]struct{}

	unreadInView   int
	newerAvailable int
	outOfView      map[string]int
}

// NewEngine builds an engine with no channel open.
func NewEngine(opts Options) *Engine {
	opts.defaults()
	e := &Engine{
		opts:         opts,
		log:          opts.Logger,
		metrics:      opts.Metrics,
		hooks:        opts.Hooks,
		store:        opts.Store,
		now:          opts.Now,
		viewport:     opts.Viewport,
		identity:     NewIdentityTracker(),
		timeline:     NewTimeline(),
		replies:      NewIdentityTracker(),
		deleteLocks:  core.NewExpiringSet(opts.Now),
		recentlySent: core.NewExpiringSet(opts.Now),
		tempToReal:   make(map[string]string),
		localDeletes: make(map[string]struct{}),
		visible:      make(map[string]struct{}),
		outOfView:    make(map[string]int),
	}
	e.scroll = newScrollState()
	e.threads = NewThreadCache(e.timeline, opts.Now, opts.ThreadLockTTL, e.onThreadApplied)
	e.read = NewReadTracker(opts.Store, opts.Logger, e.onReadTransition)
	return e
}

// SetViewport attaches the renderer. A nil viewport disables scroll
// restoration and proximity loading.
func (e *Engine) SetViewport(v Viewport) {
	e.viewport = v
}

func (e *Engine) Hooks() *Hooks             { return e.hooks }
func (e *Engine) Timeline() *Timeline       { return e.timeline }
func (e *Engine) Identity() *IdentityTracker { return e.identity }
func (e *Engine) Threads() *ThreadCache     { return e.threads }
func (e *Engine) Scroll() ScrollState       { return e.scroll }
func (e *Engine) Channel() string           { return e.channel }
func (e *Engine) Epoch() uint64             { return e.epoch }
func (e *Engine) UserID() string            { return e.opts.UserID }
func (e *Engine) PageSize() int             { return e.opts.PageSize }
func (e *Engine) Location() *time.Location  { return e.opts.Location }
func (e *Engine) ThreadView() *ThreadView   { return e.thread }

// UnreadInView is the unread badge for the open channel.
func (e *Engine) UnreadInView() int {
	return e.unreadInView
}

// UnreadElsewhere returns unread counts for channels other than the open one.
func (e *Engine) UnreadElsewhere() map[string]int {
	out := make(map[string]int, len(e.outOfView))
	for ch, n := range e.outOfView {
		if n > 0 {
			out[ch] = n
		}
	}
	return out
}

// NewerAvailable counts live messages held back because the feed is not at
// the newest boundary.
func (e *Engine) NewerAvailable() int {
	return e.newerAvailable
}

// SwitchChannel is the hard reset boundary: every piece of per-channel state
// is dropped and in-flight responses tagged with the old epoch are ignored.
func (e *Engine) SwitchChannel(channel string) uint64 {
	prev := e.channel
	e.epoch++
	e.channel = channel
	e.identity.Clear()
	e.replies.Clear()
	e.timeline.Reset()
	e.scroll = newScrollState()
	e.endShown = false
	e.thread = nil
	e.threads.Reset()
	e.deleteLocks.Reset()
	e.recentlySent.Reset()
	e.pending = nil
	e.tempToReal = make(map[string]string)
	e.localDeletes = make(map[string]struct{})
	e.visible = make(map[string]struct{})
	e.unreadInView = 0
	e.newerAvailable = 0
	delete(e.outOfView, channel)
	e.read.Forget()

	e.log.Info("channel_switched", "from", prev, "to", channel, "epoch", e.epoch)
	e.hooks.Emit(HookEvent{Name: HookChannelSwitched, ChannelID: channel, Notice: prev})
	return e.epoch
}

// GetReadStatus returns the read status of a main-feed message.
func (e *Engine) GetReadStatus(messageID string) types.ReadStatus {
	return e.read.Get(messageID, false)
}

// ObserveVisible is called by the renderer with the ids currently on screen.
// Each id entering the viewport counts as one visibility pass.
func (e *Engine) ObserveVisible(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
		if _, was := e.visible[id]; was || core.IsTempID(id) {
			continue
		}
		isThread := false
		if e.thread != nil && e.thread.Identity.IsDisplayed(id) && !e.identity.IsDisplayed(id) {
			isThread = true
		}
		e.read.MarkVisible(id, isThread)
	}
	e.visible = next
}

// MarkFullyRead marks a message read regardless of view count.
func (e *Engine) MarkFullyRead(messageID string, isThread bool) bool {
	_, changed := e.read.MarkFullyRead(messageID, isThread)
	return changed
}

// ResetReadStatus applies a server-confirmed "mark unread".
func (e *Engine) ResetReadStatus(messageID string, isThread bool) bool {
	_, changed := e.read.Reset(messageID, isThread)
	if changed && !isThread {
		if item, ok := e.timeline.Get(messageID); ok && !item.Unread && !e.isSelf(item.Record) {
			item.Unread = true
			e.unreadInView++
		}
	}
	return changed
}

func (e *Engine) onReadTransition(t ReadTransition) {
	e.metrics.ReadTransition(string(t.To))
	tl := e.timeline
	if t.IsThread && e.thread != nil {
		tl = e.thread.Timeline
	}
	if item, ok := tl.Get(t.MessageID); ok {
		item.Record.ReadStatus = t.To
		// Only the transition out of "" clears the badge, so each message
		// decrements it once.
		if t.From == types.ReadStatusNone && t.To != types.ReadStatusNone {
			if item.Unread {
				item.Unread = false
				if !t.IsThread && e.unreadInView > 0 {
					e.unreadInView--
				}
			}
		}
	}
	e.hooks.Emit(HookEvent{Name: HookReadStatus, ChannelID: e.channel, MessageID: t.MessageID, Read: &t})
}

func (e *Engine) onThreadApplied(parentID string, s *types.ThreadSummary) {
	e.hooks.Emit(HookEvent{Name: HookThreadUpdated, ChannelID: e.channel, MessageID: parentID, Thread: s})
}

// OpenThread shows replies under parentID in the thread view.
func (e *Engine) OpenThread(parentID string, replies []types.MessageRecord) {
	view := &ThreadView{ParentID: parentID, Timeline: NewTimeline(), Identity: NewIdentityTracker()}
	sortRecords(replies)
	deleted := e.recentlyDeleted()
	for _, rec := range replies {
		if _, gone := deleted[rec.ID]; gone || rec.ID == "" {
			continue
		}
		item := e.newItem(rec, true)
		if view.Timeline.Append(item) {
			view.Identity.MarkDisplayed(rec.ID)
			e.replies.MarkDisplayed(rec.ID)
		}
	}
	e.thread = view
}

// CloseThread hides the thread view.
func (e *Engine) CloseThread() {
	e.thread = nil
}

// SweepReport counts what a self-healing sweep repaired.
type SweepReport struct {
	Duplicates    int
	Resynced      int
	ThreadsHealed int
	LocksExpired  int
}

// Sweep repairs drift between the tracked state and the rendered timeline.
// It never fails.
func (e *Engine) Sweep() SweepReport {
	var r SweepReport
	r.Duplicates = e.timeline.Dedupe()
	r.Resynced = e.identity.ResyncFromView(e.timeline.IDs())
	if e.thread != nil {
		r.Duplicates += e.thread.Timeline.Dedupe()
		r.Resynced += e.thread.Identity.ResyncFromView(e.thread.Timeline.IDs())
	}
	r.ThreadsHealed = e.threads.Sweep()
	r.LocksExpired = e.deleteLocks.Sweep() + e.recentlySent.Sweep()

	e.recountUnread()

	if r.Duplicates > 0 || r.Resynced > 0 || r.ThreadsHealed > 0 {
		e.log.Debug("sweep_healed", "duplicates", r.Duplicates, "resynced", r.Resynced, "threads", r.ThreadsHealed)
	}
	e.metrics.SweepHealed("duplicates", r.Duplicates)
	e.metrics.SweepHealed("identity", r.Resynced)
	e.metrics.SweepHealed("threads", r.ThreadsHealed)
	return r
}

func (e *Engine) isSelf(rec types.MessageRecord) bool {
	return e.opts.UserID != "" && rec.AuthorID == e.opts.UserID
}

func (e *Engine) newItem(rec types.MessageRecord, isThread bool) *Item {
	status := e.read.Get(rec.ID, isThread)
	if rec.ReadStatus.Rank() > status.Rank() {
		status = rec.ReadStatus
	}
	rec.ReadStatus = status
	return &Item{
		Record: rec,
		Unread: status == types.ReadStatusNone && !e.isSelf(rec) && !core.IsTempID(rec.ID),
	}
}

func (e *Engine) recentlyDeleted() map[string]struct{} {
	ids, err := e.store.RecentlyDeleted(e.opts.RecentlyDeletedLimit)
	if err != nil {
		e.log.Warn("recently_deleted_load_failed", "error", err)
		return nil
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func (e *Engine) recordDeleted(id string) {
	if err := e.store.RecordDeleted(id); err != nil {
		e.log.Warn("record_deleted_failed", "id", id, "error", err)
	}
}

func (e *Engine) recountUnread() {
	n := 0
	for _, item := range e.timeline.Items() {
		if item.Unread {
			n++
		}
	}
	e.unreadInView = n
}
