package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory ledger with the same CAS semantics as
// the SQLite store. Tests substitute it for the durable one.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record // fingerprint|platform
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func key(fingerprint, platformName string) string {
	return fingerprint + "|" + platformName
}

func (s *MemoryStore) Find(ctx context.Context, fingerprint, platformName string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key(fingerprint, platformName)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *MemoryStore) MarkDrafted(ctx context.Context, fingerprint, platformName, externalID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(fingerprint, platformName)
	if existing, ok := s.records[k]; ok {
		if existing.Status == StatusDrafted {
			clone := *existing
			return &clone, ErrDuplicate
		}
		existing.Status = StatusDrafted
		existing.ExternalID = externalID
		existing.UpdatedAt = time.Now()
		clone := *existing
		return &clone, nil
	}
	now := time.Now()
	rec := &Record{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Platform:    platformName,
		Status:      StatusDrafted,
		ExternalID:  externalID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.records[k] = rec
	clone := *rec
	return &clone, nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, fingerprint, platformName string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(fingerprint, platformName)
	if existing, ok := s.records[k]; ok {
		if existing.Status != StatusDrafted {
			existing.UpdatedAt = time.Now()
		}
		clone := *existing
		return &clone, nil
	}
	now := time.Now()
	rec := &Record{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Platform:    platformName,
		Status:      StatusFailed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.records[k] = rec
	clone := *rec
	return &clone, nil
}

func (s *MemoryStore) ByPlatform(ctx context.Context, platformName string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []Record
	for _, rec := range s.records {
		if rec.Platform == platformName {
			recs = append(recs, *rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].UpdatedAt.After(recs[j].UpdatedAt) })
	return recs, nil
}
