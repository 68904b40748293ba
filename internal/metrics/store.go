package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"airguard/internal/model"
)

// Store keeps the most recent contact record per contact, record type and
// value for the API. It is a contacts.Sink; the least recently updated
// contact is evicted once limit contacts are tracked.
type Store struct {
	mu        sync.RWMutex
	byContact map[uuid.UUID]map[string]model.ContactRecord
	updatedAt map[uuid.UUID]time.Time
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		byContact: make(map[uuid.UUID]map[string]model.ContactRecord),
		updatedAt: make(map[uuid.UUID]time.Time),
		limit:     limit,
	}
}

func (s *Store) SaveContactRecord(_ context.Context, rec model.ContactRecord) error {
	s.Update(rec)
	return nil
}

func (s *Store) Update(rec model.ContactRecord) {
	if rec.ContactID == uuid.Nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byContact[rec.ContactID]
	if !ok {
		m = make(map[string]model.ContactRecord)
		s.byContact[rec.ContactID] = m
	}
	m[string(rec.RecordType)+"|"+rec.RecordValue] = rec
	s.updatedAt[rec.ContactID] = time.Now().UTC()
	if len(s.byContact) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(contactID uuid.UUID) ([]model.ContactRecord, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byContact[contactID]
	if !ok {
		return nil, time.Time{}, false
	}
	return sortedRecords(m), s.updatedAt[contactID], true
}

func (s *Store) GetAll() map[uuid.UUID][]model.ContactRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID][]model.ContactRecord, len(s.byContact))
	for id, m := range s.byContact {
		out[id] = sortedRecords(m)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byContact)
}

func sortedRecords(m map[string]model.ContactRecord) []model.ContactRecord {
	out := make([]model.ContactRecord, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordType != out[j].RecordType {
			return out[i].RecordType < out[j].RecordType
		}
		return out[i].RecordValue < out[j].RecordValue
	})
	return out
}

func (s *Store) evictOldest() {
	var (
		oldestID uuid.UUID
		oldest   time.Time
		found    bool
	)
	for id, ts := range s.updatedAt {
		if !found || ts.Before(oldest) {
			oldestID, oldest, found = id, ts, true
		}
	}
	if found {
		delete(s.byContact, oldestID)
		delete(s.updatedAt, oldestID)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byContact = make(map[uuid.UUID]map[string]model.ContactRecord)
	s.updatedAt = make(map[uuid.UUID]time.Time)
}
