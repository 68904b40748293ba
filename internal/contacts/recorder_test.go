package contacts

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airguard/internal/model"
)

type memorySink struct {
	mu      sync.Mutex
	records []model.ContactRecord
	failOn  string
	entered chan struct{}
	once    sync.Once
	block   chan struct{}
}

func (s *memorySink) SaveContactRecord(ctx context.Context, rec model.ContactRecord) error {
	if s.entered != nil {
		s.once.Do(func() { close(s.entered) })
	}
	if s.block != nil {
		<-s.block
	}
	if s.failOn != "" && rec.RecordValue == s.failOn {
		return errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) all() []model.ContactRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ContactRecord(nil), s.records...)
}

func ptr(s string) *string { return &s }

func TestFlushComputesPopulationStatistics(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(time.Minute, nil, sink)
	contact := uuid.New()

	for _, rssi := range []int{-40, -42, -44} {
		r.RecordFrame(contact, rssi, "02:11:22:33:44:55", nil)
	}
	stats := r.Flush(context.Background())
	require.Equal(t, 1, stats.Records)
	require.Zero(t, stats.Failed)

	recs := sink.all()
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, contact, rec.ContactID)
	assert.Equal(t, model.RecordTypeBSSID, rec.RecordType)
	assert.Equal(t, "02:11:22:33:44:55", rec.RecordValue)
	assert.Equal(t, 3, rec.FrameCount)
	assert.InDelta(t, -42.0, rec.RSSIAverage, 1e-9)
	assert.InDelta(t, math.Sqrt(8.0/3.0), rec.RSSIStdDev, 1e-9)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestSSIDBucketRequiresReadableSSID(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(time.Minute, nil, sink)
	contact := uuid.New()

	r.RecordFrame(contact, -50, "aa:aa:aa:aa:aa:aa", ptr("CoffeeShop"))
	r.RecordFrame(contact, -52, "aa:aa:aa:aa:aa:aa", ptr(""))
	r.RecordFrame(contact, -54, "aa:aa:aa:aa:aa:aa", ptr("\x00\x00"))
	r.RecordFrame(contact, -56, "aa:aa:aa:aa:aa:aa", nil)
	r.Flush(context.Background())

	var ssid, bssid []model.ContactRecord
	for _, rec := range sink.all() {
		if rec.RecordType == model.RecordTypeSSID {
			ssid = append(ssid, rec)
		} else {
			bssid = append(bssid, rec)
		}
	}
	require.Len(t, ssid, 1)
	assert.Equal(t, "CoffeeShop", ssid[0].RecordValue)
	assert.Equal(t, 1, ssid[0].FrameCount)
	require.Len(t, bssid, 1)
	assert.Equal(t, 4, bssid[0].FrameCount)
}

func TestFlushClearsBuffersAndContinuesOnFailure(t *testing.T) {
	sink := &memorySink{failOn: "bad"}
	r := NewRecorder(time.Minute, nil, sink)
	var observed FlushStats
	r.OnFlush = func(s FlushStats) { observed = s }

	a, b := uuid.New(), uuid.New()
	r.RecordFrame(a, -60, "bad", nil)
	r.RecordFrame(b, -61, "good", nil)
	require.Equal(t, 2, r.Pending())

	stats := r.Flush(context.Background())
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
	var pe *PersistenceError
	require.True(t, errors.As(stats.Errors[0], &pe))
	assert.Equal(t, a, pe.Record.ContactID)
	assert.Equal(t, stats, observed)

	assert.Zero(t, r.Pending())
	assert.Len(t, sink.all(), 1)

	again := r.Flush(context.Background())
	assert.Zero(t, again.Records)
	assert.Zero(t, again.Failed)
}

func TestRecordFrameDoesNotWaitForPersistence(t *testing.T) {
	sink := &memorySink{entered: make(chan struct{}), block: make(chan struct{})}
	r := NewRecorder(time.Minute, nil, sink)
	contact := uuid.New()
	r.RecordFrame(contact, -70, "aa", nil)

	done := make(chan FlushStats)
	go func() { done <- r.Flush(context.Background()) }()
	<-sink.entered

	recorded := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.RecordFrame(contact, -71, "aa", nil)
		}
		close(recorded)
	}()

	select {
	case <-recorded:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordFrame blocked behind a slow flush")
	}
	close(sink.block)
	stats := <-done
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, 1, r.Pending())

	r.Flush(context.Background())
	recs := sink.all()
	require.Len(t, recs, 2)
	assert.Equal(t, 100, recs[1].FrameCount)
}

func TestConcurrentRecordingLosesNoSamples(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(time.Minute, nil, sink)
	contact := uuid.New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.RecordFrame(contact, -50, "aa", nil)
			}
		}()
	}
	stop := make(chan struct{})
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		for {
			select {
			case <-stop:
				return
			default:
				r.Flush(context.Background())
			}
		}
	}()
	wg.Wait()
	close(stop)
	<-flushed
	r.Flush(context.Background())

	total := 0
	for _, rec := range sink.all() {
		total += rec.FrameCount
	}
	assert.Equal(t, 8*500, total)
}

func TestServeFlushesOnShutdown(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(time.Hour, nil, sink)
	r.RecordFrame(uuid.New(), -40, "aa", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Len(t, sink.all(), 1)
}
