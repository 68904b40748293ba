package ingest

import (
	"context"
	"log/slog"
	"time"

	"airguard/internal/dot11"
	"airguard/internal/metrics"
)

// SendNonBlocking hands a capture to the pipeline, dropping it when the
// queue is full so a slow pipeline never stalls a tap connection.
func SendNonBlocking(ctx context.Context, out chan<- dot11.Capture, c dot11.Capture, source string, logger *slog.Logger) bool {
	select {
	case out <- c:
		metrics.IngestReceived.WithLabelValues(source).Inc()
		return true
	case <-ctx.Done():
		return false
	default:
		metrics.IngestDropped.WithLabelValues(source).Inc()
		if logger != nil {
			logger.Warn("capture channel full, dropping capture", "source", source, "tap", c.Tap, "frame_type", c.Type.String())
		}
		return false
	}
}

// Send blocks until the pipeline accepts the capture or ctx is done. File
// replay uses it so a capture file is never thinned out.
func Send(ctx context.Context, out chan<- dot11.Capture, c dot11.Capture, source string) bool {
	select {
	case out <- c:
		metrics.IngestReceived.WithLabelValues(source).Inc()
		return true
	case <-ctx.Done():
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
