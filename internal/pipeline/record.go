package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Record is the persisted reading state of one document.
type Record struct {
	DocID     string    `json:"doc_id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Position  int       `json:"read_position"`
	Progress  float64   `json:"read_progress"`
	LineSize  int       `json:"line_size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PositionStore persists reading positions keyed by document id.
type PositionStore interface {
	LoadPosition(ctx context.Context, docID string) (Record, bool, error)
	SavePosition(ctx context.Context, rec Record) error
	ListPositions(ctx context.Context) ([]Record, error)
	DeletePosition(ctx context.Context, docID string) error
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// DocID is the stable identity of a document: the first 16 hex characters
// of the SHA-256 of its raw bytes.
func DocID(data []byte) string {
	return ContentHashHex(data)[:16]
}

// MemoryStore is a thread-safe in-process PositionStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) LoadPosition(_ context.Context, docID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[docID]
	return rec, ok, nil
}

func (s *MemoryStore) SavePosition(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.DocID] = rec
	return nil
}

// ListPositions returns records most recently updated first.
func (s *MemoryStore) ListPositions(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.Unlock()

	SortRecent(out)
	return out, nil
}

func (s *MemoryStore) DeletePosition(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, docID)
	return nil
}

// SortRecent orders records by UpdatedAt descending, then by DocID.
func SortRecent(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].UpdatedAt.Equal(recs[j].UpdatedAt) {
			return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
		}
		return recs[i].DocID < recs[j].DocID
	})
}
