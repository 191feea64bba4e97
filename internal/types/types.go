package types

import "time"

// Scope says whether a message lives in the main feed or inside a thread.
type Scope string

const (
	ScopeMain   Scope = "main"
	ScopeThread Scope = "thread"
)

// ReadStatus is the per-message durable read state.
type ReadStatus string

const (
	ReadStatusNone      ReadStatus = ""
	ReadStatusFirstView ReadStatus = "first_view"
	ReadStatusFullyRead ReadStatus = "fully_read"
)

// Rank orders read statuses so regressions can be detected.
func (s ReadStatus) Rank() int {
	switch s {
	case ReadStatusFirstView:
		return 1
	case ReadStatusFullyRead:
		return 2
	default:
		return 0
	}
}

// Reaction is an aggregated emoji reaction on a message.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users,omitempty"`
}

// MessageRecord represents a message as materialized in the feed.
type MessageRecord struct {
	ID                string     `json:"id"`
	ChannelID         string     `json:"channel_id"`
	AuthorID          string     `json:"author_id"`
	AuthorName        string     `json:"author_name"`
	CreatedAt         int64      `json:"created_at"`
	Content           string     `json:"content"`
	ParentID          string     `json:"parent_id,omitempty"`
	ThreadCount       int        `json:"thread_count"`
	ThreadUnreadCount int        `json:"thread_unread_count"`
	Reactions         []Reaction `json:"reactions,omitempty"`
	ReadStatus        ReadStatus `json:"read_status,omitempty"`
}

// Time returns CreatedAt (unix millis) as a time.Time.
func (m MessageRecord) Time() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// Scope reports whether the record is a thread reply.
func (m MessageRecord) Scope() Scope {
	if m.ParentID != "" {
		return ScopeThread
	}
	return ScopeMain
}

// EventType names a push-channel event.
type EventType string

const (
	EventMessagePosted        EventType = "message_posted"
	EventMessageDeleted       EventType = "message_deleted"
	EventThreadMessagePosted  EventType = "thread_message_posted"
	EventThreadMessageDeleted EventType = "thread_message_deleted"
)

// PushEvent is a single event delivered by the push channel.
type PushEvent struct {
	Type      EventType      `json:"type"`
	ID        string         `json:"id"`
	ChannelID string         `json:"channel_id"`
	Payload   *MessageRecord `json:"payload,omitempty"`
}

// IsDelete reports whether the event removes a message.
func (e PushEvent) IsDelete() bool {
	return e.Type == EventMessageDeleted || e.Type == EventThreadMessageDeleted
}

// Scope returns the event scope derived from its type.
func (e PushEvent) Scope() Scope {
	if e.Type == EventThreadMessagePosted || e.Type == EventThreadMessageDeleted {
		return ScopeThread
	}
	return ScopeMain
}

// ThreadPriority marks how authoritative a thread summary is.
type ThreadPriority string

const (
	ThreadPriorityNone ThreadPriority = ""
	ThreadPriorityHigh ThreadPriority = "high"
)

// ReplyPreview describes the most recent reply in a thread.
type ReplyPreview struct {
	ID         string `json:"id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"created_at"`
}

// ThreadSummary is the per-parent aggregate shown under a message.
type ThreadSummary struct {
	Total       int            `json:"total"`
	Unread      int            `json:"unread"`
	Avatars     []string       `json:"avatars,omitempty"`
	LatestReply *ReplyPreview  `json:"latest_reply,omitempty"`
	Timestamp   int64          `json:"timestamp"`
	Priority    ThreadPriority `json:"priority,omitempty"`
	Confirmed   bool           `json:"confirmed"`
	ChannelID   string         `json:"channel_id"`
}

// IsForceDelete reports whether the summary removes every thread cue.
func (s ThreadSummary) IsForceDelete() bool {
	return s.Total <= 0
}

// PageQuery asks the backend for a page relative to a boundary id.
type PageQuery struct {
	ChannelID string
	// ParentID restricts the page to replies of one thread.
	ParentID  string
	BeforeID  string
	AfterID   string
	Limit     int
}
