package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Contact is a period during which one transmitter kept matching one bandit
// signature without going silent for longer than the contact timeout.
type Contact struct {
	ID          uuid.UUID `json:"uuid"`
	SignatureID uuid.UUID `json:"bandit_uuid"`
	Signature   string    `json:"bandit_name"`
	Transmitter string    `json:"transmitter"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Frames      int64     `json:"frame_count"`
	LastSignal  int       `json:"last_signal"`
}

type contactKey struct {
	signature   uuid.UUID
	transmitter string
}

type ContactTracker struct {
	mu     sync.Mutex
	active map[contactKey]*Contact
}

func NewContactTracker() *ContactTracker {
	return &ContactTracker{active: make(map[contactKey]*Contact)}
}

// Observe records a frame for the signature and transmitter. It returns the
// contact id and whether the frame opened a new contact.
func (t *ContactTracker) Observe(sigID uuid.UUID, sigName, transmitter string, signal int, now time.Time, timeout time.Duration) (uuid.UUID, bool) {
	k := contactKey{signature: sigID, transmitter: transmitter}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.active[k]; ok && (timeout <= 0 || now.Sub(c.LastSeen) <= timeout) {
		if now.After(c.LastSeen) {
			c.LastSeen = now
		}
		c.Frames++
		c.LastSignal = signal
		return c.ID, false
	}
	c := &Contact{
		ID:          uuid.New(),
		SignatureID: sigID,
		Signature:   sigName,
		Transmitter: transmitter,
		FirstSeen:   now,
		LastSeen:    now,
		Frames:      1,
		LastSignal:  signal,
	}
	t.active[k] = c
	return c.ID, true
}

// Expire forgets contacts silent for longer than timeout and returns how many
// were dropped.
func (t *ContactTracker) Expire(now time.Time, timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, c := range t.active {
		if now.Sub(c.LastSeen) > timeout {
			delete(t.active, k)
			n++
		}
	}
	return n
}

// List returns the tracked contacts, most recently seen first.
func (t *ContactTracker) List() []Contact {
	t.mu.Lock()
	out := make([]Contact, 0, len(t.active))
	for _, c := range t.active {
		out = append(out, *c)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (t *ContactTracker) Get(id uuid.UUID) (Contact, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.active {
		if c.ID == id {
			return *c, true
		}
	}
	return Contact{}, false
}

func (t *ContactTracker) Reset() {
	t.mu.Lock()
	t.active = make(map[contactKey]*Contact)
	t.mu.Unlock()
}
