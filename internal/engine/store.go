package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/agentflow/internal/errors"
)

// RecordStore holds the execution records of in-flight and recently
// finished executions.
type RecordStore interface {
	// Create stores r under its execution id. It fails with
	// ErrDuplicateExecution if a record with that id is still running; a
	// finished record with the same id is replaced.
	Create(r *Record) error

	// Get returns the record for id, or ErrNotFound.
	Get(id string) (*Record, error)

	// Delete removes the record for id and reports whether it existed.
	Delete(id string) bool

	// Sweep evicts finished records that are past the retention window at
	// now and returns how many were removed.
	Sweep(now time.Time) int

	// Len returns the number of stored records.
	Len() int
}

// MemoryStore is an in-memory RecordStore. Finished records are kept for
// MaxAge after they finish; a zero MaxAge keeps them until Delete.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	maxAge  time.Duration
	onEvict func(id string)
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithEvictHook registers fn to run for every record removed by Sweep or
// Delete.
func WithEvictHook(fn func(id string)) MemoryStoreOption {
	return func(s *MemoryStore) { s.onEvict = fn }
}

// NewMemoryStore creates an empty store that retains finished records for
// maxAge.
func NewMemoryStore(maxAge time.Duration, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*Record),
		maxAge:  maxAge,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements RecordStore.
func (s *MemoryStore) Create(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[r.ID()]; ok {
		if _, done := existing.Finished(); !done {
			return errors.Wrapf(errors.ErrDuplicateExecution, "execution %s", r.ID())
		}
	}
	s.records[r.ID()] = r
	return nil
}

// Get implements RecordStore.
func (s *MemoryStore) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, errors.NewNotFoundError("execution %s not found", id)
	}
	return r, nil
}

// Delete implements RecordStore.
func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()

	if ok && s.onEvict != nil {
		s.onEvict(id)
	}
	return ok
}

// Sweep implements RecordStore.
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.maxAge <= 0 {
		return 0
	}

	s.mu.Lock()
	var evicted []string
	for id, r := range s.records {
		finishedAt, done := r.Finished()
		if done && now.Sub(finishedAt) >= s.maxAge {
			delete(s.records, id)
			evicted = append(evicted, id)
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for _, id := range evicted {
			s.onEvict(id)
		}
	}
	return len(evicted)
}

// Len implements RecordStore.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Janitor sweeps store every interval until ctx is done.
func Janitor(ctx context.Context, store RecordStore, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.Sweep(now); n > 0 {
				logger.Debug("evicted execution records", "count", n, "remaining", store.Len())
			}
		}
	}
}
