package normalize

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"airguard/internal/dot11"
)

var (
	ErrEmptyPayload = errors.New("capture payload is empty")
	ErrInvalidMeta  = errors.New("capture meta out of range")
)

// CaptureMessage is the wire form taps use to ship frames over REST and
// Kafka. Payload and Header are base64 (standard alphabet).
type CaptureMessage struct {
	FrameType string     `json:"frame_type"`
	Payload   string     `json:"payload"`
	Header    string     `json:"header,omitempty"`
	Tap       string     `json:"tap,omitempty"`
	Timestamp string     `json:"timestamp,omitempty"`
	Meta      dot11.Meta `json:"meta"`
}

// DecodeMessages accepts a single JSON object or an array of them.
func DecodeMessages(data []byte) ([]CaptureMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var list []CaptureMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var msg CaptureMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, err
	}
	return []CaptureMessage{msg}, nil
}

// Capture validates a message and turns it into a pipeline capture. Messages
// without a tap are attributed to defaultTap.
func Capture(msg CaptureMessage, defaultTap string) (dot11.Capture, error) {
	ft, err := dot11.ParseFrameType(msg.FrameType)
	if err != nil {
		return dot11.Capture{}, err
	}
	payload, err := decodeBase64(msg.Payload)
	if err != nil {
		return dot11.Capture{}, fmt.Errorf("payload: %w", err)
	}
	if len(payload) == 0 {
		return dot11.Capture{}, ErrEmptyPayload
	}
	header, err := decodeBase64(msg.Header)
	if err != nil {
		return dot11.Capture{}, fmt.Errorf("header: %w", err)
	}
	if err := validateMeta(msg.Meta); err != nil {
		return dot11.Capture{}, err
	}

	ts := time.Now().UTC()
	if msg.Timestamp != "" {
		parsed, err := ParseTimestamp(msg.Timestamp, time.UTC)
		if err != nil {
			return dot11.Capture{}, fmt.Errorf("parse timestamp: %w", err)
		}
		ts = parsed.UTC()
	}
	tap := strings.TrimSpace(msg.Tap)
	if tap == "" {
		tap = defaultTap
	}
	return dot11.Capture{
		Type:       ft,
		Payload:    payload,
		Header:     header,
		Meta:       msg.Meta,
		Tap:        tap,
		ReceivedAt: ts,
	}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func validateMeta(m dot11.Meta) error {
	if m.AntennaSignal > 0 || m.AntennaSignal < -127 {
		return fmt.Errorf("%w: antenna_signal %d", ErrInvalidMeta, m.AntennaSignal)
	}
	if m.Frequency < 0 || m.Channel < 0 {
		return fmt.Errorf("%w: frequency %d channel %d", ErrInvalidMeta, m.Frequency, m.Channel)
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05Z0700",
}

// ParseTimestamp accepts RFC 3339, common ISO variants, and unix seconds or
// milliseconds.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if isNumeric(value) {
		if ts, err := parseUnix(value); err == nil {
			return ts, nil
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}

func parseUnix(value string) (time.Time, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if len(value) >= 13 {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Unix(n, 0).UTC(), nil
}
