package model

import (
	"time"

	"github.com/google/uuid"
)

type RecordType string

const (
	RecordTypeSSID  RecordType = "SSID"
	RecordTypeBSSID RecordType = "BSSID"
)

// ContactRecord is the aggregated signal statistics of one contact for one
// SSID or BSSID over a recorder window.
type ContactRecord struct {
	ContactID   uuid.UUID  `json:"contact_uuid"`
	RecordType  RecordType `json:"record_type"`
	RecordValue string     `json:"record_value"`
	FrameCount  int        `json:"frame_count"`
	RSSIAverage float64    `json:"rssi_average"`
	RSSIStdDev  float64    `json:"rssi_stddev"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HistogramRow holds the frame counts of one time bucket, indexed by signal
// strength from -100 dBm (index 0) to -1 dBm (index 99).
type HistogramRow struct {
	BSSID     string    `json:"bssid"`
	Channel   int       `json:"channel"`
	CreatedAt time.Time `json:"created_at"`
	Counts    []int     `json:"signal_bucket_counts"`
}

// IdentifierRow is a stored bandit identifier as loaded from the database.
type IdentifierRow struct {
	ID            int64          `json:"id"`
	UUID          uuid.UUID      `json:"uuid"`
	Type          string         `json:"type"`
	Configuration map[string]any `json:"configuration"`
}

type BanditRow struct {
	UUID         uuid.UUID       `json:"uuid"`
	IsCustom     bool            `json:"is_custom"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Fingerprints []string        `json:"fingerprints,omitempty"`
	Identifiers  []IdentifierRow `json:"identifiers"`
}

type Alert struct {
	ID          uuid.UUID         `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Severity    string            `json:"severity"`
	AlertType   string            `json:"alert_type"`
	SignatureID uuid.UUID         `json:"signature_id"`
	Signature   string            `json:"signature"`
	ContactID   uuid.UUID         `json:"contact_id"`
	Transmitter string            `json:"transmitter"`
	FrameType   string            `json:"frame_type"`
	Tap         string            `json:"tap,omitempty"`
	Signal      int               `json:"signal"`
	Rules       []string          `json:"rules"`
	Context     map[string]string `json:"context,omitempty"`
}
