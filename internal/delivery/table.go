package delivery

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

type record struct {
	tracking Tracking
	token    string
}

// table is the tracking store. Each message id hashes to one shard, so
// deliveries for different ids rarely share a lock and never hold one while
// talking to the transport.
type table struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*record
}

func newTable() *table {
	t := &table{}
	for i := range t.shards {
		t.shards[i].entries = make(map[string]*record)
	}
	return t
}

func (t *table) shardFor(id string) *shard {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(id))
	return &t.shards[hash.Sum32()%shardCount]
}

// begin inserts a pending record. A terminal record with the same id is
// replaced; a pending one is rejected.
func (t *table) begin(tracking Tracking, token string) bool {
	s := t.shardFor(tracking.MessageID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[tracking.MessageID]; ok && !existing.tracking.Status.Terminal() {
		return false
	}
	s.entries[tracking.MessageID] = &record{tracking: tracking.clone(), token: token}
	return true
}

func (t *table) get(id string) (Tracking, bool) {
	s := t.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return Tracking{}, false
	}
	return entry.tracking.clone(), true
}

func (t *table) token(id string) string {
	s := t.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[id]; ok {
		return entry.token
	}
	return ""
}

// update applies fn to the live record and returns a copy of the result.
func (t *table) update(id string, fn func(*Tracking)) (Tracking, bool) {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return Tracking{}, false
	}
	fn(&entry.tracking)
	return entry.tracking.clone(), true
}

// reopen moves every failed or timed-out record with attempts left back to
// pending and returns their ids.
func (t *table) reopen(maxAttempts int) []string {
	var ids []string
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for id, entry := range s.entries {
			status := entry.tracking.Status
			if status != StatusFailed && status != StatusTimeout {
				continue
			}
			if len(entry.tracking.Attempts) >= maxAttempts {
				continue
			}
			entry.tracking.Status = StatusPending
			ids = append(ids, id)
		}
		s.mu.Unlock()
	}
	return ids
}

// scan calls fn for every record under a read lock. fn must not retain the
// pointer.
func (t *table) scan(fn func(*Tracking)) {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		for _, entry := range s.entries {
			fn(&entry.tracking)
		}
		s.mu.RUnlock()
	}
}

func (t *table) removeIf(match func(*Tracking) bool) int {
	removed := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for id, entry := range s.entries {
			if match(&entry.tracking) {
				delete(s.entries, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
