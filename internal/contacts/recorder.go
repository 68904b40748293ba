package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"airguard/internal/dot11"
	"airguard/internal/model"
)

const DefaultFlushInterval = time.Minute

// Sink persists aggregated contact records.
type Sink interface {
	SaveContactRecord(ctx context.Context, rec model.ContactRecord) error
}

// PersistenceError is a flush-time failure to store one bucket.
type PersistenceError struct {
	Record model.ContactRecord
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist contact %s %s %q: %v", e.Record.ContactID, e.Record.RecordType, e.Record.RecordValue, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type FlushStats struct {
	Records int
	Failed  int
	Errors  []error
}

type buckets map[uuid.UUID]map[string][]float64

func (b buckets) add(id uuid.UUID, key string, rssi float64) {
	m, ok := b[id]
	if !ok {
		m = make(map[string][]float64)
		b[id] = m
	}
	m[key] = append(m[key], rssi)
}

// Recorder aggregates per-contact signal samples and flushes them as contact
// records on a fixed interval.
type Recorder struct {
	mu     sync.Mutex
	ssids  buckets
	bssids buckets

	sinks    []Sink
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	// OnFlush, when set, observes every completed flush.
	OnFlush func(FlushStats)
}

func NewRecorder(interval time.Duration, logger *slog.Logger, sinks ...Sink) *Recorder {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Recorder{
		ssids:    make(buckets),
		bssids:   make(buckets),
		sinks:    sinks,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordFrame adds one RSSI sample for the contact. The BSSID bucket always
// receives it; the SSID bucket only for readable SSIDs.
func (r *Recorder) RecordFrame(contactID uuid.UUID, rssi int, bssid string, ssid *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bssids.add(contactID, bssid, float64(rssi))
	if ssid != nil && dot11.IsHumanlyReadable(*ssid) {
		r.ssids.add(contactID, *ssid, float64(rssi))
	}
}

// Flush swaps out the current window and persists it. Persistence runs
// without holding the lock; samples recorded meanwhile land in the next
// window. The swapped window is never retried.
func (r *Recorder) Flush(ctx context.Context) FlushStats {
	r.mu.Lock()
	ssids, bssids := r.ssids, r.bssids
	r.ssids, r.bssids = make(buckets), make(buckets)
	r.mu.Unlock()

	createdAt := r.now().UTC()
	records := make([]model.ContactRecord, 0, len(ssids)+len(bssids))
	records = appendRecords(records, model.RecordTypeSSID, ssids, createdAt)
	records = appendRecords(records, model.RecordTypeBSSID, bssids, createdAt)

	var stats FlushStats
	for _, rec := range records {
		if err := r.persist(ctx, rec); err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, err)
			if r.logger != nil {
				r.logger.Error("contact record persistence failed", "contact", rec.ContactID, "record_type", rec.RecordType, "error", err)
			}
			continue
		}
		stats.Records++
	}
	if r.OnFlush != nil {
		r.OnFlush(stats)
	}
	return stats
}

func (r *Recorder) persist(ctx context.Context, rec model.ContactRecord) error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.SaveContactRecord(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &PersistenceError{Record: rec, Err: errors.Join(errs...)}
}

// Pending reports the number of buckets in the current window.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.ssids {
		n += len(m)
	}
	for _, m := range r.bssids {
		n += len(m)
	}
	return n
}

// Serve flushes every interval until ctx is done, then flushes once more.
func (r *Recorder) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// the final window is written with a fresh context
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			r.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

func (r *Recorder) String() string { return "contact-recorder" }

func appendRecords(out []model.ContactRecord, rt model.RecordType, b buckets, createdAt time.Time) []model.ContactRecord {
	ids := make([]uuid.UUID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		values := make([]string, 0, len(b[id]))
		for v := range b[id] {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			samples := b[id][v]
			mean, std := stat.PopMeanStdDev(samples, nil)
			out = append(out, model.ContactRecord{
				ContactID:   id,
				RecordType:  rt,
				RecordValue: v,
				FrameCount:  len(samples),
				RSSIAverage: mean,
				RSSIStdDev:  std,
				CreatedAt:   createdAt,
			})
		}
	}
	return out
}
