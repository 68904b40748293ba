package dot11

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsHumanlyReadable filters SSIDs worth aggregating statistics for: hidden
// networks and binary garbage are excluded.
func IsHumanlyReadable(ssid string) bool {
	if strings.TrimSpace(ssid) == "" {
		return false
	}
	if !utf8.ValidString(ssid) {
		return false
	}
	for _, r := range ssid {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// ChannelFromFrequency maps a center frequency in MHz to its channel number.
// Unknown frequencies map to 0.
func ChannelFromFrequency(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz <= 2472:
		return (mhz - 2407) / 5
	case mhz == 5935:
		return 2
	case mhz >= 5955 && mhz <= 7115:
		return (mhz - 5950) / 5
	case mhz >= 5160 && mhz <= 5885:
		return (mhz - 5000) / 5
	case mhz >= 4915 && mhz <= 4980:
		return (mhz - 4000) / 5
	}
	return 0
}
