package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline
	FramesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airguard_frames_decoded_total",
			Help: "Management frames decoded, by frame type",
		},
		[]string{"frame_type"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airguard_frames_dropped_total",
			Help: "Frames dropped before evaluation, by reason",
		},
		[]string{"reason"}, // "malformed", "unknown_type", "duplicate", "trusted"
	)

	BanditHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airguard_bandit_hits_total",
			Help: "Frames matched by a bandit signature",
		},
		[]string{"signature"},
	)

	ContactsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airguard_contacts_opened_total",
			Help: "New bandit contacts",
		},
	)

	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airguard_alerts_total",
			Help: "Alerts raised, by severity",
		},
		[]string{"severity"},
	)

	CatalogSignatures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airguard_catalog_signatures",
			Help: "Signatures in the active bandit catalog",
		},
	)

	// Recorder and waterfall
	ContactRecordsFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airguard_contact_records_flushed_total",
			Help: "Contact records persisted by the recorder",
		},
	)

	ContactRecordErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airguard_contact_record_errors_total",
			Help: "Contact records that failed to persist",
		},
	)

	HistogramRowsFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airguard_histogram_rows_flushed_total",
			Help: "Waterfall histogram rows flushed, by outcome",
		},
		[]string{"outcome"}, // "written", "failed"
	)

	// Ingest
	IngestDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airguard_ingest_dropped_total",
			Help: "Captures dropped because the pipeline queue was full",
		},
		[]string{"source"},
	)

	IngestReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airguard_ingest_received_total",
			Help: "Captures accepted from a source",
		},
		[]string{"source"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
