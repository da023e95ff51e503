package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/airbot/internal/airquality"
)

var (
	// ErrNotFound is returned when no report is available for a source.
	ErrNotFound = errors.New("no report for source")
)

// SnapshotHistory holds a time-ordered list of report snapshots for a source.
type SnapshotHistory struct {
	Snapshots []airquality.Snapshot
}

// MemoryStore is a concurrency-safe in-memory report history. Nothing
// survives a restart.
type MemoryStore struct {
	mu sync.RWMutex

	data map[airquality.Source]*SnapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per source
	maxAge     time.Duration // optional max age for snapshots
	clock      clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[airquality.Source]*SnapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clockwork.NewRealClock(),
	}
}

// WithClock swaps the time source used for age-based retention.
func (s *MemoryStore) WithClock(c clockwork.Clock) *MemoryStore {
	s.clock = c
	return s
}

// SaveSnapshot appends a new snapshot for its source and enforces retention.
func (s *MemoryStore) SaveSnapshot(snapshot airquality.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[snapshot.Source]
	if !ok {
		history = &SnapshotHistory{}
		s.data[snapshot.Source] = history
	}

	history.Snapshots = append(history.Snapshots, snapshot)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Snapshots) > s.maxHistory {
		over := len(history.Snapshots) - s.maxHistory
		history.Snapshots = history.Snapshots[over:]
	}

	// Enforce retention by age; the newest snapshot is always kept.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Snapshots)-1; i++ {
			if !history.Snapshots[i].GeneratedAt.Before(cutoff) {
				break
			}
		}
		history.Snapshots = history.Snapshots[i:]
	}
}

// GetLatest returns the most recent snapshot for a source.
func (s *MemoryStore) GetLatest(source airquality.Source) (airquality.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[source]
	if !ok || len(history.Snapshots) == 0 {
		return airquality.Snapshot{}, ErrNotFound
	}
	return history.Snapshots[len(history.Snapshots)-1], nil
}

// GetRange returns all snapshots for a source generated between from and to (inclusive).
func (s *MemoryStore) GetRange(source airquality.Source, from, to time.Time) ([]airquality.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[source]
	if !ok || len(history.Snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []airquality.Snapshot
	for _, snap := range history.Snapshots {
		if !snap.GeneratedAt.Before(from) && !snap.GeneratedAt.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
