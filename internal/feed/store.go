package feed

import (
	"github.com/adamavenir/frayfeed/internal/types"
)

// StateStore is the durable local state that survives reload: read status,
// view counts and the recently-deleted id list.
type StateStore interface {
	GetReadStatus(messageID string, isThread bool) (types.ReadStatus, error)
	SetReadStatus(messageID string, isThread bool, status types.ReadStatus) error
	IncrementViewCount(messageID string, isThread bool) (int, error)
	RecordDeleted(messageID string) error
	// RecentlyDeleted returns up to limit ids, newest first.
	RecentlyDeleted(limit int) ([]string, error)
}

type readKey struct {
	id       string
	isThread bool
}

// MemoryStore is a StateStore that lives only as long as the process.
type MemoryStore struct {
	status  map[readKey]types.ReadStatus
	views   map[readKey]int
	deleted []string
	limit   int
}

// NewMemoryStore returns an empty store keeping at most limit deleted ids.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 200
	}
	return &MemoryStore{
		status: make(map[readKey]types.ReadStatus),
		views:  make(map[readKey]int),
		limit:  limit,
	}
}

func (m *MemoryStore) GetReadStatus(messageID string, isThread bool) (types.ReadStatus, error) {
	return m.status[readKey{messageID, isThread}], nil
}

func (m *MemoryStore) SetReadStatus(messageID string, isThread bool, status types.ReadStatus) error {
	key := readKey{messageID, isThread}
	if status == types.ReadStatusNone {
		delete(m.status, key)
		return nil
	}
	m.status[key] = status
	return nil
}

func (m *MemoryStore) IncrementViewCount(messageID string, isThread bool) (int, error) {
	key := readKey{messageID, isThread}
	m.views[key]++
	return m.views[key], nil
}

func (m *MemoryStore) RecordDeleted(messageID string) error {
	for i, id := range m.deleted {
		if id == messageID {
			m.deleted = append(m.deleted[:i], m.deleted[i+1:]...)
			break
		}
	}
	m.deleted = append([]string{messageID}, m.deleted...)
	if len(m.deleted) > m.limit {
		m.deleted = m.deleted[:m.limit]
	}
	return nil
}

func (m *MemoryStore) RecentlyDeleted(limit int) ([]string, error) {
	if limit <= 0 || limit > len(m.deleted) {
		limit = len(m.deleted)
	}
	return append([]string(nil), m.deleted[:limit]...), nil
}
