package feed

import (
	"log/slog"

	"github.com/adamavenir/frayfeed/internal/types"
)

// ReadTracker is the per-message read-status state machine:
//
//	"" --visible--> first_view --visible again--> fully_read
//
// Status only moves forward; Reset is the one way back, used when the server
// confirms a message as unread.
type ReadTracker struct {
	store  StateStore
	log    *slog.Logger
	cache  map[readKey]types.ReadStatus
	notify func(ReadTransition)
}

// NewReadTracker persists through store and reports transitions to notify.
func NewReadTracker(store StateStore, log *slog.Logger, notify func(ReadTransition)) *ReadTracker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &ReadTracker{
		store:  store,
		log:    log,
		cache:  make(map[readKey]types.ReadStatus),
		notify: notify,
	}
}

// Get returns the current status. Store failures read as unread.
func (r *ReadTracker) Get(messageID string, isThread bool) types.ReadStatus {
	key := readKey{messageID, isThread}
	if status, ok := r.cache[key]; ok {
		return status
	}
	status, err := r.store.GetReadStatus(messageID, isThread)
	if err != nil {
		r.log.Warn("read_status_load_failed", "id", messageID, "error", err)
		return types.ReadStatusNone
	}
	r.cache[key] = status
	return status
}

// MarkVisible records one visibility pass. The first pass moves "" to
// first_view; a later pass, once the persisted view count reaches two, moves
// first_view to fully_read.
func (r *ReadTracker) MarkVisible(messageID string, isThread bool) (ReadTransition, bool) {
	count, err := r.store.IncrementViewCount(messageID, isThread)
	if err != nil {
		r.log.Warn("view_count_failed", "id", messageID, "error", err)
	}
	cur := r.Get(messageID, isThread)
	switch cur {
	case types.ReadStatusNone:
		return r.transition(messageID, isThread, cur, types.ReadStatusFirstView)
	case types.ReadStatusFirstView:
		if count >= 2 || err != nil {
			return r.transition(messageID, isThread, cur, types.ReadStatusFullyRead)
		}
	}
	return ReadTransition{}, false
}

// MarkFullyRead jumps straight to fully_read.
func (r *ReadTracker) MarkFullyRead(messageID string, isThread bool) (ReadTransition, bool) {
	cur := r.Get(messageID, isThread)
	if cur == types.ReadStatusFullyRead {
		return ReadTransition{}, false
	}
	return r.transition(messageID, isThread, cur, types.ReadStatusFullyRead)
}

// Reset moves the message back to unread.
func (r *ReadTracker) Reset(messageID string, isThread bool) (ReadTransition, bool) {
	cur := r.Get(messageID, isThread)
	if cur == types.ReadStatusNone {
		return ReadTransition{}, false
	}
	return r.transition(messageID, isThread, cur, types.ReadStatusNone)
}

// Forget drops cached state so the next Get reads the store again.
func (r *ReadTracker) Forget() {
	r.cache = make(map[readKey]types.ReadStatus)
}

func (r *ReadTracker) transition(messageID string, isThread bool, from, to types.ReadStatus) (ReadTransition, bool) {
	if to != types.ReadStatusNone && to.Rank() <= from.Rank() {
		return ReadTransition{}, false
	}
	r.cache[readKey{messageID, isThread}] = to
	if err := r.store.SetReadStatus(messageID, isThread, to); err != nil {
		r.log.Warn("read_status_persist_failed", "id", messageID, "status", string(to), "error", err)
	}
	t := ReadTransition{MessageID: messageID, IsThread: isThread, From: from, To: to}
	if r.notify != nil {
		r.notify(t)
	}
	return t, true
}
