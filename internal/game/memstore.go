package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/domain"
)

// memStore is a development and test implementation used when no database
// is configured.
type memStore struct {
	mu       sync.RWMutex
	records  map[string]*domain.GameRecord
	profiles map[string]*domain.PlayerProfile

	now func() time.Time
}

// NewMemoryStore returns an in-memory Store and ProfileStore.
func NewMemoryStore() *memStore {
	return &memStore{
		records:  make(map[string]*domain.GameRecord),
		profiles: make(map[string]*domain.PlayerProfile),
		now:      time.Now,
	}
}

func (m *memStore) LoadByID(ctx context.Context, id, ownerID string) (*Session, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok || rec.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return SessionFromRecord(cloneRecord(rec))
}

func (m *memStore) Persist(ctx context.Context, s *Session) error {
	now := m.now()
	if s.ID == "" {
		s.ID = uuid.NewString()
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	rec := s.Record()
	m.mu.Lock()
	if existing, ok := m.records[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
		s.CreatedAt = existing.CreatedAt
	}
	m.records[rec.ID] = cloneRecord(rec)
	m.mu.Unlock()
	return nil
}

func (m *memStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.SessionSummary, 0)
	for _, rec := range m.records {
		if rec.OwnerID != ownerID {
			continue
		}
		out = append(out, domain.SessionSummary{
			ID:        rec.ID,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) SweepExpired(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := m.now().Add(-retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, rec := range m.records {
		if rec.UpdatedAt.Before(cutoff) {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memStore) GetProfile(ctx context.Context, ownerID string) (*domain.PlayerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[ownerID]; ok {
		dup := *p
		return &dup, nil
	}
	return nil, nil
}

func (m *memStore) UpsertProfile(ctx context.Context, profile *domain.PlayerProfile) error {
	if profile == nil {
		return nil
	}
	dup := *profile
	m.mu.Lock()
	m.profiles[profile.OwnerID] = &dup
	m.mu.Unlock()
	return nil
}

func cloneRecord(rec *domain.GameRecord) *domain.GameRecord {
	dup := *rec
	dup.Moves = append([]string(nil), rec.Moves...)
	if rec.CachedProbability != nil {
		p := *rec.CachedProbability
		dup.CachedProbability = &p
	}
	return &dup
}
