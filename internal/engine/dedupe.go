package engine

import (
	"crypto/sha256"
	"sync"
	"time"

	"airguard/internal/dot11"
)

type captureKey [sha256.Size]byte

// hashCapture keys a capture by frame type and 802.11 bytes only. The radiotap
// header and meta differ per tap, so they stay out of the key. Retransmissions
// still differ in the sequence control field.
func hashCapture(c dot11.Capture) captureKey {
	h := sha256.New()
	h.Write([]byte{byte(c.Type)})
	h.Write(c.Payload)
	var k captureKey
	h.Sum(k[:0])
	return k
}

type DedupeCache struct {
	mu    sync.Mutex
	items map[captureKey]time.Time
}

func NewDedupeCache() *DedupeCache {
	return &DedupeCache{items: make(map[captureKey]time.Time)}
}

func (d *DedupeCache) Seen(key captureKey, now time.Time, ttl time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ts, ok := d.items[key]; ok && now.Sub(ts) <= ttl {
		return true
	}
	d.items[key] = now
	if len(d.items) > 10000 {
		for k, ts := range d.items {
			if now.Sub(ts) > ttl {
				delete(d.items, k)
			}
		}
	}
	return false
}

func (d *DedupeCache) Reset() {
	d.mu.Lock()
	d.items = make(map[captureKey]time.Time)
	d.mu.Unlock()
}
