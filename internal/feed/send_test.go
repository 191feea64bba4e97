package feed

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/adamavenir/frayfeed/internal/core"
	"github.com/adamavenir/frayfeed/internal/types"
)

type statusErr struct {
	status int
}

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.status) }
func (e statusErr) Retryable() bool { return e.status >= 500 }

func selfRecord(id, content string) types.MessageRecord {
	rec := msg(id, 100)
	rec.CreatedAt = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC).UnixMilli()
	rec.AuthorID = testUser
	rec.AuthorName = "me"
	rec.Content = content
	return rec
}

func TestSendConfirmRewritesInPlace(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 2), DisplayOptions{Limit: 3, Newest: true})

	req, err := e.BeginSend("hello", "")
	if err != nil {
		t.Fatalf("begin send: %v", err)
	}
	if !core.IsTempID(req.TempID) || !e.Identity().IsDisplayed(req.TempID) {
		t.Fatalf("temp item not rendered: %q", req.TempID)
	}
	e.HandleEvent(posted(msg("3", 3)))
	assertIDs(t, e.Timeline().IDs(), "1", "2", req.TempID, "3")

	res := e.CompleteSend(req, Ok(selfRecord("srv-1", "hello")))
	if res.Kind != OutcomeOK || res.RealID != "srv-1" {
		t.Fatalf("result: %+v", res)
	}
	assertIDs(t, e.Timeline().IDs(), "1", "2", "srv-1", "3")
	if e.Identity().IsDisplayed(req.TempID) || !e.Identity().IsDisplayed("srv-1") {
		t.Fatalf("identity not rewritten")
	}
	item, _ := e.Timeline().Get("srv-1")
	if item.State != ItemConfirmed || item.Unread {
		t.Fatalf("confirmed item state: %+v", item)
	}
	if env.count(HookMessageConfirmed) != 1 {
		t.Fatalf("confirmed hook count: %d", env.count(HookMessageConfirmed))
	}

	got := e.HandleEvent(posted(selfRecord("srv-1", "hello")))
	if got.Action != RouteDropped {
		t.Fatalf("echo after confirm must be dropped: %+v", got)
	}
	if e.Timeline().Len() != 4 {
		t.Fatalf("echo produced a duplicate item")
	}
}

func TestSendEchoBeforeResponse(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 2), DisplayOptions{Limit: 3, Newest: true})

	req, _ := e.BeginSend("  ship it ", "")
	got := e.HandleEvent(posted(selfRecord("srv-9", "ship it")))
	if got.Action != RouteReconciled {
		t.Fatalf("echo should reconcile: %+v", got)
	}
	assertIDs(t, e.Timeline().IDs(), "1", "2", "srv-9")

	res := e.CompleteSend(req, Ok(selfRecord("srv-9", "ship it")))
	if !res.AlreadyReconciled {
		t.Fatalf("late response should be a no-op: %+v", res)
	}
	assertIDs(t, e.Timeline().IDs(), "1", "2", "srv-9")
}

func TestSendRetryableKeepsItem(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 2), DisplayOptions{Limit: 3, Newest: true})

	req, _ := e.BeginSend("flaky", "")
	res := e.CompleteSend(req, Failed[types.MessageRecord](statusErr{status: 503}))
	if res.Kind != OutcomeRetryable || res.Notice == "" {
		t.Fatalf("result: %+v", res)
	}
	item, ok := e.Timeline().Get(req.TempID)
	if !ok || item.State != ItemPersistedPending {
		t.Fatalf("temp item should persist: %+v", item)
	}

	// The next page reveals the canonical record.
	e.scroll.HasReachedNewest = false
	e.scroll.NewestID = "2"
	newer, _ := e.BeginLoadNewer()
	rec := selfRecord("srv-2", "flaky")
	e.CompleteLoadNewer(newer, Ok([]types.MessageRecord{rec}))
	assertIDs(t, e.Timeline().IDs(), "1", "2", "srv-2")
	if len(e.Pending()) != 0 {
		t.Fatalf("pending send should be reconciled")
	}
}

func TestSendFatalRollsBack(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 2), DisplayOptions{Limit: 3, Newest: true})

	req, _ := e.BeginSend("too long", "")
	res := e.CompleteSend(req, Failed[types.MessageRecord](statusErr{status: 422}))
	if res.Kind != OutcomeFatal || res.Draft != "too long" {
		t.Fatalf("result: %+v", res)
	}
	assertIDs(t, e.Timeline().IDs(), "1", "2")
	if e.Identity().IsDisplayed(req.TempID) {
		t.Fatalf("temp id still tracked")
	}
	if env.count(HookSendRolledBack) != 1 {
		t.Fatalf("rolled back hook count: %d", env.count(HookSendRolledBack))
	}
}

func TestSendValidation(t *testing.T) {
	env := newTestEnv(t, 3)
	if _, err := env.engine.BeginSend("   ", ""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("empty content: got %v", err)
	}
	env.engine.SwitchChannel("")
	if _, err := env.engine.BeginSend("hi", ""); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("no channel: got %v", err)
	}
}

func TestSendStaleAfterChannelSwitch(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	req, _ := e.BeginSend("hi", "")
	e.SwitchChannel("random")
	res := e.CompleteSend(req, Ok(selfRecord("srv-1", "hi")))
	if !res.Stale || e.Timeline().Len() != 0 {
		t.Fatalf("stale send must not touch the new channel: %+v", res)
	}
}

func TestSendThreadReplyInOpenThread(t *testing.T) {
	env := newTestEnv(t, 3)
	e := env.engine
	e.DisplayMessages(msgs(1, 2), DisplayOptions{Limit: 3, Newest: true})
	e.OpenThread("1", nil)

	req, _ := e.BeginSend("in thread", "1")
	if e.Identity().IsDisplayed(req.TempID) {
		t.Fatalf("reply must not render in the main feed")
	}
	if !e.ThreadView().Identity.IsDisplayed(req.TempID) {
		t.Fatalf("reply not rendered in thread view")
	}
	rec := selfRecord("srv-r1", "in thread")
	rec.ParentID = "1"
	e.CompleteSend(req, Ok(rec))
	assertIDs(t, e.ThreadView().Timeline.IDs(), "srv-r1")
	if !strings.HasPrefix(req.TempID, core.TempIDPrefix) {
		t.Fatalf("temp id prefix: %q", req.TempID)
	}
}

func TestSendThreadReplyBumpsParentSummary(t *testing.T) {
	tests := []struct {
		name      string
		echoFirst bool
	}{
		{name: "response then echo"},
		{name: "echo then response", echoFirst: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 3)
			e := env.engine
			page := msgs(1, 2)
			page[0].ThreadCount = 2
			e.DisplayMessages(page, DisplayOptions{Limit: 3, Newest: true})

			for i, content := range []string{"first", "second"} {
				req, err := e.BeginSend(content, "1")
				if err != nil {
					t.Fatalf("begin send: %v", err)
				}
				rec := selfRecord(fmt.Sprintf("srv-r%d", i), content)
				rec.ParentID = "1"
				if tt.echoFirst {
					e.HandleEvent(posted(rec))
					e.CompleteSend(req, Ok(rec))
				} else {
					e.CompleteSend(req, Ok(rec))
					e.HandleEvent(posted(rec))
				}
			}

			cached, ok := e.Threads().Get("1")
			if !ok || cached.Total != 4 {
				t.Fatalf("cached summary: %+v", cached)
			}
			if cached.Unread != 0 {
				t.Fatalf("own replies must not count as unread: %+v", cached)
			}
			parent, _ := e.Timeline().Get("1")
			if parent.Thread == nil || parent.Thread.Total != 4 {
				t.Fatalf("rendered summary: %+v", parent.Thread)
			}
		})
	}
}
