package feed

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/adamavenir/frayfeed/internal/types"
)

// Backend is the request/response service the feed reads from and writes to.
type Backend interface {
	FetchPage(ctx context.Context, q types.PageQuery) ([]types.MessageRecord, error)
	SendMessage(ctx context.Context, channelID, content, parentID, clientID string) (types.MessageRecord, error)
	DeleteMessage(ctx context.Context, id string) error
	ThreadSummaries(ctx context.Context, parentIDs []string) (map[string]types.ThreadSummary, error)
	MarkRead(ctx context.Context, id string) error
}

// Timeouts bound each backend operation.
type Timeouts struct {
	Send     time.Duration
	Page     time.Duration
	Thread   time.Duration
	Delete   time.Duration
	MarkRead time.Duration
}

// DefaultTimeouts returns the per-operation client timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Send:     10 * time.Second,
		Page:     15 * time.Second,
		Thread:   5 * time.Second,
		Delete:   10 * time.Second,
		MarkRead: 2 * time.Second,
	}
}

// Session drives an Engine through a Loop against a Backend. Its methods may
// be called from any goroutine; they block until the result has been applied.
type Session struct {
	loop     *Loop
	backend  Backend
	log      *slog.Logger
	timeouts Timeouts
	refresh  singleflight.Group
	wg       sync.WaitGroup
	unsub    func()
}

// NewSession wires loop to backend. Transitions to fully_read are reported to
// the backend in the background.
func NewSession(loop *Loop, backend Backend, log *slog.Logger, timeouts Timeouts) *Session {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Session{loop: loop, backend: backend, log: log, timeouts: timeouts}
	s.unsub = loop.engine.Hooks().On(HookReadStatus, func(ev HookEvent) {
		if ev.Read == nil || ev.Read.To != types.ReadStatusFullyRead {
			return
		}
		s.markRead(ev.Read.MessageID)
	})
	return s
}

// Close detaches hooks and waits for background requests.
func (s *Session) Close() {
	if s.unsub != nil {
		s.unsub()
	}
	s.wg.Wait()
}

// Loop returns the loop the session drives.
func (s *Session) Loop() *Loop {
	return s.loop
}

func (s *Session) markRead(id string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.MarkRead)
		defer cancel()
		if err := s.backend.MarkRead(ctx, id); err != nil {
			s.log.Debug("mark_read_failed", "id", id, "error", err)
		}
	}()
}

// Start opens channel and displays its newest page.
func (s *Session) Start(ctx context.Context, channel string) (int, error) {
	var (
		epoch    uint64
		pageSize int
		started  time.Time
	)
	if err := s.loop.Call(ctx, func(e *Engine) {
		epoch = e.SwitchChannel(channel)
		pageSize = e.PageSize()
		started = e.now()
	}); err != nil {
		return 0, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeouts.Page)
	page, err := s.backend.FetchPage(fetchCtx, types.PageQuery{ChannelID: channel, Limit: pageSize})
	cancel()
	if err != nil {
		s.log.Warn("initial_load_failed", "channel", channel, "error", err)
		return 0, err
	}

	var (
		shown   int
		parents []string
	)
	if err := s.loop.Call(ctx, func(e *Engine) {
		if e.Epoch() != epoch {
			return
		}
		shown = e.DisplayMessages(page, DisplayOptions{Limit: pageSize, Newest: true, FetchedAt: started})
		parents = threadParents(e.Timeline())
	}); err != nil {
		return 0, err
	}
	if len(parents) > 0 {
		if _, err := s.RefreshThreads(ctx, parents); err != nil {
			s.log.Debug("thread_refresh_failed", "error", err)
		}
	}
	return shown, nil
}

// SwitchChannel is Start for a different channel.
func (s *Session) SwitchChannel(ctx context.Context, channel string) (int, error) {
	return s.Start(ctx, channel)
}

// LoadOlder fetches one older page if the loader guards allow it.
func (s *Session) LoadOlder(ctx context.Context) (LoadResult, bool, error) {
	var (
		req *HistoryRequest
		ok  bool
	)
	if err := s.loop.Call(ctx, func(e *Engine) { req, ok = e.BeginLoadOlder() }); err != nil || !ok {
		return LoadResult{}, false, err
	}
	out := s.fetch(ctx, req.Query)
	var res LoadResult
	err := s.loop.Call(ctx, func(e *Engine) { res = e.CompleteLoadOlder(req, out) })
	return res, true, err
}

// LoadNewer fetches one newer page if the loader guards allow it.
func (s *Session) LoadNewer(ctx context.Context) (LoadResult, bool, error) {
	var (
		req *HistoryRequest
		ok  bool
	)
	if err := s.loop.Call(ctx, func(e *Engine) { req, ok = e.BeginLoadNewer() }); err != nil || !ok {
		return LoadResult{}, false, err
	}
	out := s.fetch(ctx, req.Query)
	var res LoadResult
	err := s.loop.Call(ctx, func(e *Engine) { res = e.CompleteLoadNewer(req, out) })
	return res, true, err
}

// OnScroll checks the viewport and issues whichever load it calls for.
func (s *Session) OnScroll(ctx context.Context) (LoadDirection, LoadResult, error) {
	var dir LoadDirection
	if err := s.loop.Call(ctx, func(e *Engine) { dir = e.OnScroll() }); err != nil {
		return LoadNone, LoadResult{}, err
	}
	var (
		res LoadResult
		ok  bool
		err error
	)
	switch dir {
	case LoadOlder:
		res, ok, err = s.LoadOlder(ctx)
	case LoadNewer:
		res, ok, err = s.LoadNewer(ctx)
	}
	if !ok {
		dir = LoadNone
	}
	return dir, res, err
}

func (s *Session) fetch(ctx context.Context, q types.PageQuery) Outcome[[]types.MessageRecord] {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeouts.Page)
	defer cancel()
	page, err := s.backend.FetchPage(fetchCtx, q)
	return OutcomeOf(page, err)
}

// Send renders content optimistically, sends it, and reconciles the result.
func (s *Session) Send(ctx context.Context, content, parentID string) (SendResult, error) {
	var (
		req *SendRequest
		err error
	)
	if callErr := s.loop.Call(ctx, func(e *Engine) { req, err = e.BeginSend(content, parentID) }); callErr != nil {
		return SendResult{}, callErr
	}
	if err != nil {
		return SendResult{}, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeouts.Send)
	rec, sendErr := s.backend.SendMessage(sendCtx, req.ChannelID, req.Content, req.ParentID, req.TempID)
	cancel()
	out := OutcomeOf(rec, sendErr)

	var res SendResult
	if err := s.loop.Call(ctx, func(e *Engine) { res = e.CompleteSend(req, out) }); err != nil {
		return res, err
	}
	if res.Kind == OutcomeFatal {
		return res, sendErr
	}
	return res, nil
}

// Delete removes id optimistically and confirms with the backend.
func (s *Session) Delete(ctx context.Context, id string) (DeleteResult, error) {
	var (
		req *DeleteRequest
		err error
	)
	if callErr := s.loop.Call(ctx, func(e *Engine) { req, err = e.DeleteMessage(id) }); callErr != nil {
		return DeleteResult{}, callErr
	}
	if err != nil {
		return DeleteResult{}, err
	}
	if req.LocalOnly {
		return DeleteResult{Kind: OutcomeOK}, nil
	}

	delCtx, cancel := context.WithTimeout(ctx, s.timeouts.Delete)
	delErr := s.backend.DeleteMessage(delCtx, req.ID)
	cancel()

	var res DeleteResult
	if err := s.loop.Call(ctx, func(e *Engine) { res = e.CompleteDelete(req, OutcomeOf(struct{}{}, delErr)) }); err != nil {
		return res, err
	}
	if res.Kind == OutcomeFatal {
		return res, delErr
	}
	return res, nil
}

// RefreshThreads batch-fetches summaries for parentIDs. Concurrent refreshes
// for the same set share one request. Results are stamped with the request
// start time so a push update that lands meanwhile wins.
func (s *Session) RefreshThreads(ctx context.Context, parentIDs []string) (int, error) {
	if len(parentIDs) == 0 {
		return 0, nil
	}
	ids := append([]string(nil), parentIDs...)
	sort.Strings(ids)

	var (
		epoch   uint64
		started time.Time
	)
	if err := s.loop.Call(ctx, func(e *Engine) {
		epoch = e.Epoch()
		started = e.now()
	}); err != nil {
		return 0, err
	}

	key := strings.Join(ids, ",")
	v, err, _ := s.refresh.Do(key, func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(ctx, s.timeouts.Thread)
		defer cancel()
		return s.backend.ThreadSummaries(refreshCtx, ids)
	})
	if err != nil {
		s.log.Warn("thread_refresh_failed", "count", len(ids), "error", err)
		return 0, err
	}
	summaries, _ := v.(map[string]types.ThreadSummary)

	var applied int
	err = s.loop.Call(ctx, func(e *Engine) {
		applied = e.ApplyThreadSummaries(epoch, started, summaries)
	})
	return applied, err
}

// OpenThread fetches the replies under parentID and shows them in the
// thread view.
func (s *Session) OpenThread(ctx context.Context, parentID string) (int, error) {
	var (
		channel  string
		epoch    uint64
		pageSize int
	)
	if err := s.loop.Call(ctx, func(e *Engine) {
		channel, epoch, pageSize = e.Channel(), e.Epoch(), e.PageSize()
	}); err != nil {
		return 0, err
	}
	if channel == "" {
		return 0, ErrNoChannel
	}
	out := s.fetch(ctx, types.PageQuery{ChannelID: channel, ParentID: parentID, Limit: pageSize})
	if out.Err != nil {
		return 0, out.Err
	}
	var shown int
	err := s.loop.Call(ctx, func(e *Engine) {
		if e.Epoch() != epoch {
			return
		}
		e.OpenThread(parentID, out.Value)
		shown = e.ThreadView().Timeline.Len()
	})
	return shown, err
}

// CloseThread hides the thread view.
func (s *Session) CloseThread(ctx context.Context) error {
	return s.loop.Call(ctx, func(e *Engine) { e.CloseThread() })
}

// Consume feeds push events into the loop until events closes or ctx ends.
func (s *Session) Consume(ctx context.Context, events <-chan types.PushEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !s.loop.Do(func(e *Engine) { e.HandleEvent(ev) }) {
				return ErrLoopStopped
			}
		}
	}
}

// ApplyThreadSummaries applies a batch refresh issued at startedAt under
// epoch. It returns how many summaries were applied.
func (e *Engine) ApplyThreadSummaries(epoch uint64, startedAt time.Time, summaries map[string]types.ThreadSummary) int {
	if epoch != e.epoch {
		e.metrics.EventDropped("stale_thread_refresh")
		return 0
	}
	applied := 0
	for parentID, s := range summaries {
		s.Timestamp = startedAt.UnixMilli()
		s.ChannelID = e.channel
		s.Priority = types.ThreadPriorityNone
		s.Confirmed = true
		res := e.threads.QueueUpdate(parentID, s, SourceRefresh)
		e.metrics.ThreadUpdate(string(res))
		if res == UpdateApplied || res == UpdateEvicted {
			applied++
		}
	}
	return applied
}

func threadParents(tl *Timeline) []string {
	var ids []string
	for _, item := range tl.Items() {
		if item.Record.ThreadCount > 0 && item.State == ItemConfirmed {
			ids = append(ids, item.ID())
		}
	}
	return ids
}
