package ingest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airguard/internal/dot11"
	"airguard/internal/dot11/dot11test"
)

// radiotap header with channel (2437 MHz) and antenna signal (-42 dBm)
var radiotap = []byte{
	0x00, 0x00, 0x0d, 0x00,
	0x28, 0x00, 0x00, 0x00,
	0x85, 0x09, 0xa0, 0x00,
	0xd6,
}

func writePcap(t *testing.T, link layers.LinkType, frames ...[]byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, link))
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, f := range frames {
		data := append(append([]byte(nil), radiotap...), f...)
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}, data))
	}
	return &buf
}

func TestReadPcapExtractsManagementFrames(t *testing.T) {
	beacon := dot11test.Beacon("02:00:00:00:00:01", dot11test.CapabilityESS, dot11test.SSID("pwned"), dot11test.Rates())
	data := make([]byte, 24)
	data[0] = 0x08 // data frame
	buf := writePcap(t, layers.LinkTypeIEEE80211Radio, beacon, data)

	var got []dot11.Capture
	stats, err := ReadPcap(context.Background(), buf, "lab", func(c dot11.Capture) bool {
		got = append(got, c)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Packets)
	assert.Equal(t, 1, stats.Captures)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, dot11.FrameTypeBeacon, c.Type)
	assert.Equal(t, beacon, c.Payload)
	assert.Equal(t, radiotap, c.Header)
	assert.Equal(t, -42, c.Meta.AntennaSignal)
	assert.Equal(t, 2437, c.Meta.Frequency)
	assert.Equal(t, "lab", c.Tap)

	f, err := dot11.NewDecoder(nil).DecodeCapture(c)
	require.NoError(t, err)
	assert.Equal(t, 6, f.Meta().Channel)
	assert.Equal(t, "pwned", f.(*dot11.Beacon).SSID)
}

func TestReadPcapRejectsOtherLinkTypes(t *testing.T) {
	buf := writePcap(t, layers.LinkTypeEthernet)
	_, err := ReadPcap(context.Background(), buf, "lab", func(dot11.Capture) bool { return true })
	assert.Error(t, err)
}

func TestSendNonBlockingDropsWhenFull(t *testing.T) {
	out := make(chan dot11.Capture, 1)
	ctx := context.Background()
	assert.True(t, SendNonBlocking(ctx, out, dot11.Capture{Tap: "a"}, "test", nil))
	assert.False(t, SendNonBlocking(ctx, out, dot11.Capture{Tap: "b"}, "test", nil))
	assert.Equal(t, "a", (<-out).Tap)
}
