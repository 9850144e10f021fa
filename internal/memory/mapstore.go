package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MapStore is the in-process Store backing. Entries are evicted after
// an idle TTL by a background janitor, and a capacity bound evicts the
// longest-idle entry when exceeded, so the registry cannot grow without
// bound for the lifetime of the process.
type MapStore struct {
	mu         sync.RWMutex
	entries    map[string]*mapEntry
	ttl        time.Duration
	maxEntries int
	done       chan struct{}
	closeOnce  sync.Once
}

type mapEntry struct {
	conv     *Conversation
	lastUsed time.Time
}

// NewMapStore creates a MapStore. ttl <= 0 disables idle eviction;
// maxEntries <= 0 disables the capacity bound. The janitor runs until
// Close is called.
func NewMapStore(ttl time.Duration, maxEntries int) *MapStore {
	s := &MapStore{
		entries:    make(map[string]*mapEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		done:       make(chan struct{}),
	}
	if ttl > 0 {
		go s.janitor()
	}
	return s
}

func (s *MapStore) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return cloneConversation(e.conv), nil
}

func (s *MapStore) Put(_ context.Context, id string, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = &mapEntry{conv: cloneConversation(conv), lastUsed: time.Now()}

	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		s.evictOldestLocked()
	}
	return nil
}

func (s *MapStore) Evict(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live conversations.
func (s *MapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the janitor.
func (s *MapStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *MapStore) evictOldestLocked() {
	var oldest string
	var oldestTime time.Time
	for id, e := range s.entries {
		if oldest == "" || e.lastUsed.Before(oldestTime) {
			oldest = id
			oldestTime = e.lastUsed
		}
	}
	if oldest != "" {
		delete(s.entries, oldest)
	}
}

func (s *MapStore) janitor() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, e := range s.entries {
				if now.Sub(e.lastUsed) > s.ttl {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// cloneConversation deep-copies via the JSON round trip the Redis
// backing uses anyway, so both stores hand out value semantics.
func cloneConversation(c *Conversation) *Conversation {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		// Conversation contains only strings; marshalling cannot fail.
		return &Conversation{Summary: c.Summary, Turns: append([]Turn(nil), c.Turns...)}
	}
	var out Conversation
	if err := json.Unmarshal(data, &out); err != nil {
		return &Conversation{Summary: c.Summary, Turns: append([]Turn(nil), c.Turns...)}
	}
	return &out
}
