package tracks

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"airguard/internal/model"
)

const DefaultBucket = time.Minute

// RowSink persists flushed histogram rows.
type RowSink interface {
	SaveHistogramRow(ctx context.Context, row model.HistogramRow) error
}

type waterfallKey struct {
	bssid   string
	channel int
}

// Collector counts received frames per transmitter, channel and signal
// bucket over fixed time windows. Each flushed window becomes one histogram
// row per transmitter and channel.
type Collector struct {
	mu      sync.Mutex
	window  time.Time
	buckets map[waterfallKey]*[Columns]int

	sink   RowSink
	bucket time.Duration
	logger *slog.Logger
	now    func() time.Time

	// OnFlush, when set, observes the rows written and failed per flush.
	OnFlush func(written, failed int)
}

func NewCollector(bucket time.Duration, sink RowSink, logger *slog.Logger) *Collector {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	c := &Collector{
		buckets: make(map[waterfallKey]*[Columns]int),
		sink:    sink,
		bucket:  bucket,
		logger:  logger,
		now:     time.Now,
	}
	c.window = c.now().UTC().Truncate(bucket)
	return c
}

func (c *Collector) RecordSignal(bssid string, channel, signal int) {
	if bssid == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := waterfallKey{bssid: bssid, channel: channel}
	counts, ok := c.buckets[k]
	if !ok {
		counts = new([Columns]int)
		c.buckets[k] = counts
	}
	counts[Column(signal)]++
}

// Flush closes the current window and writes its rows outside the lock.
func (c *Collector) Flush(ctx context.Context) (written, failed int) {
	c.mu.Lock()
	window, buckets := c.window, c.buckets
	c.buckets = make(map[waterfallKey]*[Columns]int)
	c.window = c.now().UTC().Truncate(c.bucket)
	c.mu.Unlock()

	keys := make([]waterfallKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].bssid != keys[j].bssid {
			return keys[i].bssid < keys[j].bssid
		}
		return keys[i].channel < keys[j].channel
	})
	for _, k := range keys {
		row := model.HistogramRow{
			BSSID:     k.bssid,
			Channel:   k.channel,
			CreatedAt: window,
			Counts:    buckets[k][:],
		}
		if c.sink == nil {
			continue
		}
		if err := c.sink.SaveHistogramRow(ctx, row); err != nil {
			failed++
			if c.logger != nil {
				c.logger.Error("histogram row persistence failed", "bssid", k.bssid, "channel", k.channel, "error", err)
			}
			continue
		}
		written++
	}
	if c.OnFlush != nil {
		c.OnFlush(written, failed)
	}
	return written, failed
}

func (c *Collector) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.bucket)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			c.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			c.Flush(ctx)
		}
	}
}

func (c *Collector) String() string { return "waterfall-collector" }
