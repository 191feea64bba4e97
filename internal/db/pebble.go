package db

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/adamavenir/frayfeed/internal/types"
)

// Key layout:
//
//	read:<scope>:<id>      -> status
//	views:<scope>:<id>     -> uint64 big endian
//	deleted:<id>           -> seq (uint64 big endian)
//	delseq:<^seq>:<id>     -> empty; iterates newest first
var (
	prefixRead    = []byte("read:")
	prefixViews   = []byte("views:")
	prefixDeleted = []byte("deleted:")
	prefixDelSeq  = []byte("delseq:")
)

// PebbleStore keeps feed state in an embedded pebble database.
type PebbleStore struct {
	mu    sync.Mutex
	db    *pebble.DB
	limit int
	seq   uint64
}

// OpenPebble opens or creates the store directory at path.
func OpenPebble(path string, limit int) (*PebbleStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	pdb, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	if limit <= 0 {
		limit = 200
	}
	s := &PebbleStore{db: pdb, limit: limit}
	if err := s.loadSeq(); err != nil {
		_ = pdb.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scopeKey(prefix []byte, messageID string, isThread bool) []byte {
	scope := "m:"
	if isThread {
		scope = "t:"
	}
	key := make([]byte, 0, len(prefix)+len(scope)+len(messageID))
	key = append(key, prefix...)
	key = append(key, scope...)
	return append(key, messageID...)
}

func delSeqKey(seq uint64, messageID string) []byte {
	key := append([]byte(nil), prefixDelSeq...)
	key = binary.BigEndian.AppendUint64(key, math.MaxUint64-seq)
	key = append(key, ':')
	return append(key, messageID...)
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

func (s *PebbleStore) get(key []byte) ([]byte, bool, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *PebbleStore) GetReadStatus(messageID string, isThread bool) (types.ReadStatus, error) {
	v, ok, err := s.get(scopeKey(prefixRead, messageID, isThread))
	if err != nil || !ok {
		return types.ReadStatusNone, err
	}
	return types.ReadStatus(v), nil
}

func (s *PebbleStore) SetReadStatus(messageID string, isThread bool, status types.ReadStatus) error {
	key := scopeKey(prefixRead, messageID, isThread)
	if status == types.ReadStatusNone {
		return s.db.Delete(key, pebble.Sync)
	}
	return s.db.Set(key, []byte(status), pebble.Sync)
}

func (s *PebbleStore) IncrementViewCount(messageID string, isThread bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scopeKey(prefixViews, messageID, isThread)
	v, ok, err := s.get(key)
	if err != nil {
		return 0, err
	}
	var count uint64
	if ok && len(v) == 8 {
		count = binary.BigEndian.Uint64(v)
	}
	count++
	if err := s.db.Set(key, binary.BigEndian.AppendUint64(nil, count), pebble.Sync); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *PebbleStore) RecordDeleted(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()

	idKey := append(append([]byte(nil), prefixDeleted...), messageID...)
	if v, ok, err := s.get(idKey); err != nil {
		return err
	} else if ok && len(v) == 8 {
		if err := batch.Delete(delSeqKey(binary.BigEndian.Uint64(v), messageID), nil); err != nil {
			return err
		}
	}
	s.seq++
	if err := batch.Set(idKey, binary.BigEndian.AppendUint64(nil, s.seq), nil); err != nil {
		return err
	}
	if err := batch.Set(delSeqKey(s.seq, messageID), nil, nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	return s.trimDeleted()
}

// trimDeleted drops entries past the limit. Caller holds mu.
func (s *PebbleStore) trimDeleted() error {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefixDelSeq, UpperBound: upperBound(prefixDelSeq)})
	if err != nil {
		return err
	}
	var stale [][]byte
	n := 0
	for ok := it.First(); ok; ok = it.Next() {
		n++
		if n > s.limit {
			stale = append(stale, append([]byte(nil), it.Key()...))
		}
	}
	if err := it.Close(); err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, key := range stale {
		id := key[len(prefixDelSeq)+9:]
		if err := batch.Delete(key, nil); err != nil {
			return err
		}
		if err := batch.Delete(append(append([]byte(nil), prefixDeleted...), id...), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleStore) RecentlyDeleted(limit int) ([]string, error) {
	if limit <= 0 {
		limit = s.limit
	}
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefixDelSeq, UpperBound: upperBound(prefixDelSeq)})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var ids []string
	for ok := it.First(); ok && len(ids) < limit; ok = it.Next() {
		k := it.Key()
		if len(k) < len(prefixDelSeq)+9 || !bytes.HasPrefix(k, prefixDelSeq) {
			continue
		}
		ids = append(ids, string(k[len(prefixDelSeq)+9:]))
	}
	return ids, nil
}

func (s *PebbleStore) loadSeq() error {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefixDelSeq, UpperBound: upperBound(prefixDelSeq)})
	if err != nil {
		return err
	}
	defer it.Close()
	if it.First() {
		k := it.Key()
		if len(k) >= len(prefixDelSeq)+8 {
			s.seq = math.MaxUint64 - binary.BigEndian.Uint64(k[len(prefixDelSeq):len(prefixDelSeq)+8])
		}
	}
	return nil
}
