package feed

import (
	"sync"

	"github.com/adamavenir/frayfeed/internal/types"
)

// HookName names a feed mutation notification.
type HookName string

const (
	HookMessagesDisplayed HookName = "messages:displayed"
	HookMessageAdded      HookName = "message_added"
	HookMessageRemoved    HookName = "message_removed"
	HookMessageConfirmed  HookName = "message:confirmed"
	HookSendPending       HookName = "send:pending"
	HookSendRolledBack    HookName = "send:rolled_back"
	HookThreadUpdated     HookName = "thread:updated"
	HookHistoryEnd        HookName = "history:end"
	HookReadStatus        HookName = "read:status"
	HookChannelSwitched   HookName = "channel:switched"
)

// ReadTransition describes one read-status change.
type ReadTransition struct {
	MessageID string
	IsThread  bool
	From      types.ReadStatus
	To        types.ReadStatus
}

// HookEvent is passed to hook subscribers. Only the fields relevant to the
// hook are set.
type HookEvent struct {
	Name      HookName
	ChannelID string
	MessageID string
	Message   *types.MessageRecord
	Thread    *types.ThreadSummary
	Read      *ReadTransition
	Count     int
	Notice    string
	// Self is true when the message was authored by the local user.
	Self bool
}

// Hooks fans feed notifications out to UI chrome subscribers.
// Subscribers may be added or removed from any goroutine; Emit runs them on
// the caller's goroutine.
type Hooks struct {
	mu   sync.Mutex
	next int
	subs map[HookName]map[int]func(HookEvent)
}

// NewHooks returns an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{subs: make(map[HookName]map[int]func(HookEvent))}
}

// On subscribes fn to name and returns a function that unsubscribes it.
func (h *Hooks) On(name HookName, fn func(HookEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[name] == nil {
		h.subs[name] = make(map[int]func(HookEvent))
	}
	id := h.next
	h.next++
	h.subs[name][id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs[name], id)
		h.mu.Unlock()
	}
}

// Emit delivers ev to every subscriber of ev.Name in subscription order.
func (h *Hooks) Emit(ev HookEvent) {
	h.mu.Lock()
	subs := h.subs[ev.Name]
	fns := make([]func(HookEvent), 0, len(subs))
	for id := 0; id < h.next; id++ {
		if fn, ok := subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
