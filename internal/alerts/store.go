package alerts

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"airguard/internal/model"
)

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Since       time.Time
	ContactID   uuid.UUID
	SignatureID uuid.UUID
	Transmitter string
	Limit       int
}

func (f Filter) match(a model.Alert) bool {
	if !f.Since.IsZero() && a.Timestamp.Before(f.Since) {
		return false
	}
	if f.ContactID != uuid.Nil && a.ContactID != f.ContactID {
		return false
	}
	if f.SignatureID != uuid.Nil && a.SignatureID != f.SignatureID {
		return false
	}
	if f.Transmitter != "" && a.Transmitter != f.Transmitter {
		return false
	}
	return true
}

// Store is a bounded in-memory ring of the most recent alerts.
type Store struct {
	mu    sync.RWMutex
	buf   []model.Alert
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(alert model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, alert)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = alert
}

// List returns the newest matching alerts, oldest first.
func (s *Store) List(f Filter) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Alert
	for i := len(s.buf) - 1; i >= 0; i-- {
		if !f.match(s.buf[i]) {
			continue
		}
		out = append(out, s.buf[i])
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
