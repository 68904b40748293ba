package normalize

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airguard/internal/dot11"
	"airguard/internal/dot11/dot11test"
)

func TestCaptureFromMessage(t *testing.T) {
	payload := dot11test.Beacon("02:00:00:00:00:01", dot11test.CapabilityESS, dot11test.SSID("pwned"))
	msgs, err := DecodeMessages([]byte(`{
		"frame_type": "beacon",
		"payload": "` + base64.StdEncoding.EncodeToString(payload) + `",
		"timestamp": "2024-05-01T12:00:00Z",
		"meta": {"antenna_signal": -42, "frequency": 2437}
	}`))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	c, err := Capture(msgs[0], "rest")
	require.NoError(t, err)
	assert.Equal(t, dot11.FrameTypeBeacon, c.Type)
	assert.Equal(t, payload, c.Payload)
	assert.Nil(t, c.Header)
	assert.Equal(t, "rest", c.Tap)
	assert.Equal(t, -42, c.Meta.AntennaSignal)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), c.ReceivedAt)

	f, err := dot11.NewDecoder(nil).DecodeCapture(c)
	require.NoError(t, err)
	assert.Equal(t, "pwned", f.(*dot11.Beacon).SSID)
}

func TestDecodeMessagesArray(t *testing.T) {
	msgs, err := DecodeMessages([]byte(` [{"frame_type":"deauth","tap":"north"},{"frame_type":"probe_req"}] `))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "north", msgs[0].Tap)

	_, err = DecodeMessages([]byte("  "))
	assert.Error(t, err)
	_, err = DecodeMessages([]byte("{nope"))
	assert.Error(t, err)
}

func TestCaptureRejects(t *testing.T) {
	good := base64.StdEncoding.EncodeToString(make([]byte, 40))
	cases := []struct {
		name string
		msg  CaptureMessage
		want error
	}{
		{"unknown type", CaptureMessage{FrameType: "data", Payload: good}, dot11.ErrUnknownFrameType},
		{"empty payload", CaptureMessage{FrameType: "beacon"}, ErrEmptyPayload},
		{"positive signal", CaptureMessage{FrameType: "beacon", Payload: good, Meta: dot11.Meta{AntennaSignal: 3}}, ErrInvalidMeta},
		{"negative frequency", CaptureMessage{FrameType: "beacon", Payload: good, Meta: dot11.Meta{Frequency: -1}}, ErrInvalidMeta},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Capture(tc.msg, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	_, err := Capture(CaptureMessage{FrameType: "beacon", Payload: "!!!"}, "")
	assert.Error(t, err)
	_, err = Capture(CaptureMessage{FrameType: "beacon", Payload: good, Timestamp: "yesterday"}, "")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-05-01T12:00:00Z", "2024-05-01 12:00:00", "1714564800", "1714564800000"} {
		got, err := ParseTimestamp(in, time.UTC)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}
	_, err := ParseTimestamp("", time.UTC)
	assert.Error(t, err)
}
