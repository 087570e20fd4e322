package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/datasift-cli/internal/pipeline"
)

var errSessionNotFound = errors.New("dataset session not found")

// Entry is one loaded dataset. Sessions are read-only once stored.
type Entry struct {
	ID       string
	Session  *pipeline.Session
	LoadedAt time.Time
	seq      uint64
}

// Store keeps loaded datasets in memory, evicting the oldest beyond its limit.
type Store struct {
	mu      sync.RWMutex
	limit   int
	seq     uint64
	entries map[string]*Entry
}

// NewStore returns a store holding at most limit sessions; limit <= 0 means 64.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 64
	}
	return &Store{limit: limit, entries: map[string]*Entry{}}
}

// Put stores s under a new id.
func (st *Store) Put(s *pipeline.Session) *Entry {
	e := &Entry{ID: uuid.NewString(), Session: s, LoadedAt: time.Now()}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.seq++
	e.seq = st.seq
	for len(st.entries) >= st.limit {
		var oldest *Entry
		for _, c := range st.entries {
			if oldest == nil || c.seq < oldest.seq {
				oldest = c
			}
		}
		delete(st.entries, oldest.ID)
	}
	st.entries[e.ID] = e
	return e
}

// Get returns the entry for id.
func (st *Store) Get(id string) (*Entry, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, ok := st.entries[id]
	if !ok {
		return nil, errSessionNotFound
	}
	return e, nil
}

// Delete removes id.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.entries[id]; !ok {
		return errSessionNotFound
	}
	delete(st.entries, id)
	return nil
}

// List returns entries oldest first.
func (st *Store) List() []*Entry {
	st.mu.RLock()
	out := make([]*Entry, 0, len(st.entries))
	for _, e := range st.entries {
		out = append(out, e)
	}
	st.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Len reports the number of stored sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}
