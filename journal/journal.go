// Package journal provides an append-only record of every admitted
// presale command. Replaying the journal through a fresh engine rebuilds
// state deterministically, since each entry carries the caller and the
// host clock the command originally executed under.
package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pflow-xyz/go-presale/presale"
)

var (
	// ErrConflict reports an optimistic concurrency failure: the journal
	// advanced between the caller's read and its append.
	ErrConflict = errors.New("journal: sequence conflict")
)

// Entry is one admitted command.
type Entry struct {
	ID         string          `json:"id"`
	Seq        int             `json:"seq"` // 0-based journal position
	Command    presale.Command `json:"command"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// NewEntry wraps a command with a fresh ID. Seq is assigned on append.
func NewEntry(cmd presale.Command) *Entry {
	return &Entry{
		ID:         uuid.NewString(),
		Seq:        -1,
		Command:    cmd,
		RecordedAt: time.Now().UTC(),
	}
}

// Store is the journal persistence interface.
type Store interface {
	// Append adds entries after expectedSeq (-1 for an empty journal)
	// and returns the new last sequence number. A mismatch between
	// expectedSeq and the stored tail fails with ErrConflict.
	Append(ctx context.Context, expectedSeq int, entries []*Entry) (int, error)

	// Read returns all entries with Seq >= fromSeq in order.
	Read(ctx context.Context, fromSeq int) ([]*Entry, error)

	// Close releases the store's resources.
	Close() error
}

// MemoryStore keeps the journal in memory. Useful for tests and
// ephemeral hosts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, expectedSeq int, entries []*Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := len(s.entries) - 1
	if expectedSeq != last {
		return last, ErrConflict
	}
	for _, entry := range entries {
		entry.Seq = len(s.entries)
		s.entries = append(s.entries, entry)
	}
	return len(s.entries) - 1, nil
}

// Read implements Store.
func (s *MemoryStore) Read(_ context.Context, fromSeq int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fromSeq < 0 {
		fromSeq = 0
	}
	if fromSeq >= len(s.entries) {
		return nil, nil
	}
	out := make([]*Entry, len(s.entries)-fromSeq)
	copy(out, s.entries[fromSeq:])
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
