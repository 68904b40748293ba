package dot11_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airguard/internal/dot11"
	"airguard/internal/dot11/dot11test"
)

const (
	apMAC  = "02:11:22:33:44:55"
	staMAC = "0a:bb:cc:dd:ee:ff"
)

var testMeta = dot11.Meta{AntennaSignal: -52, Frequency: 2437, MACTimestamp: 123456789}

func decode(t *testing.T, ft dot11.FrameType, payload []byte) dot11.Frame {
	t.Helper()
	f, err := dot11.NewDecoder(nil).Decode(ft, payload, []byte{0x00, 0x00, 0x08, 0x00}, testMeta)
	require.NoError(t, err)
	require.NotNil(t, f)
	return f
}

func requireMalformed(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, dot11.ErrMalformedFrame), "want malformed, got %v", err)
	var de *dot11.DecodeError
	require.True(t, errors.As(err, &de))
}

func TestDecodeBeacon(t *testing.T) {
	payload := dot11test.Beacon(apMAC, dot11test.CapabilityESS|dot11test.CapabilityPrivacy,
		dot11test.SSID("CoffeeShop"), dot11test.Rates(), dot11test.DSSet(6),
		dot11test.RSN(4, 2), dot11test.WPS())

	f := decode(t, dot11.FrameTypeBeacon, payload)
	b, ok := f.(*dot11.Beacon)
	require.True(t, ok)

	assert.Equal(t, dot11.FrameTypeBeacon, b.Type())
	assert.Equal(t, "CoffeeShop", b.SSID)
	assert.Equal(t, apMAC, b.Transmitter)
	assert.Equal(t, apMAC, b.BSSID)
	assert.Equal(t, "WPA2-PSK-CCMP", b.Security)
	assert.True(t, b.WPS)
	assert.Len(t, b.TransmitterFingerprint, 64)
	assert.Equal(t, -52, b.Meta().AntennaSignal)
	assert.Equal(t, 6, b.Meta().Channel)
	assert.True(t, b.Meta().WEP)
	assert.Equal(t, payload, b.RawPayload())
	assert.Equal(t, apMAC, dot11.TransmitterOf(f))
}

func TestBeaconEmptyVersusMissingSSID(t *testing.T) {
	empty := dot11test.Beacon(apMAC, dot11test.CapabilityESS, dot11test.SSID(""), dot11test.Rates())
	f := decode(t, dot11.FrameTypeBeacon, empty)
	assert.Equal(t, "", f.(*dot11.Beacon).SSID)

	missing := dot11test.Beacon(apMAC, dot11test.CapabilityESS, dot11test.Rates())
	_, err := dot11.NewDecoder(nil).Decode(dot11.FrameTypeBeacon, missing, nil, testMeta)
	requireMalformed(t, err)
}

func TestBeaconTruncatedElementAfterSSID(t *testing.T) {
	payload := dot11test.Beacon(apMAC, dot11test.CapabilityESS, dot11test.SSID("lab"))
	payload = append(payload, 0x01, 0x08, 0x82) // rates claims 8 bytes, has 1

	b := decode(t, dot11.FrameTypeBeacon, payload).(*dot11.Beacon)
	assert.Equal(t, "lab", b.SSID)
	assert.True(t, b.Tagged.Truncated())
}

func TestShortPayloadsAreMalformed(t *testing.T) {
	minimum := map[dot11.FrameType]int{
		dot11.FrameTypeBeacon:              36,
		dot11.FrameTypeProbeResponse:       36,
		dot11.FrameTypeAssociationRequest:  28,
		dot11.FrameTypeAssociationResponse: 28,
		dot11.FrameTypeProbeRequest:        24,
		dot11.FrameTypeDeauthentication:    26,
		dot11.FrameTypeDisassociation:      26,
		dot11.FrameTypeAuthentication:      30,
	}
	dec := dot11.NewDecoder(nil)
	for ft, need := range minimum {
		t.Run(ft.String(), func(t *testing.T) {
			for n := 0; n < need; n++ {
				payload := make([]byte, n)
				_, err := dec.Decode(ft, payload, nil, testMeta)
				requireMalformed(t, err)
			}
		})
	}
}

func TestUnknownFrameType(t *testing.T) {
	_, err := dot11.NewDecoder(nil).Decode(dot11.FrameType(0x3f), make([]byte, 64), nil, testMeta)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dot11.ErrUnknownFrameType))
	assert.False(t, errors.Is(err, dot11.ErrMalformedFrame))
}

func TestDecodeDeauthentication(t *testing.T) {
	f := decode(t, dot11.FrameTypeDeauthentication, dot11test.Deauthentication(staMAC, apMAC, 7))
	d := f.(*dot11.Deauthentication)
	assert.Equal(t, staMAC, d.Destination)
	assert.Equal(t, apMAC, d.Transmitter)
	assert.Equal(t, uint16(7), d.ReasonCode)
	assert.Equal(t, "Class 3 frame received from nonassociated STA", d.Reason)
	assert.Len(t, d.TransmitterFingerprint, 64)

	other := decode(t, dot11.FrameTypeDeauthentication, dot11test.Deauthentication(staMAC, apMAC, 1))
	assert.NotEqual(t, d.TransmitterFingerprint, other.(*dot11.Deauthentication).TransmitterFingerprint)
}

func TestDecodeUnknownReason(t *testing.T) {
	f := decode(t, dot11.FrameTypeDisassociation, dot11test.Disassociation(staMAC, apMAC, 999))
	d := f.(*dot11.Disassociation)
	assert.Equal(t, uint16(999), d.ReasonCode)
	assert.Equal(t, "Unknown reason", d.Reason)
}

func TestAssociationResponseStatus(t *testing.T) {
	cases := []struct {
		name     string
		status   uint16
		response string
		bad      bool
	}{
		{name: "success", status: 0, response: "success"},
		{name: "refused", status: 1, response: "refused"},
		{name: "max positive", status: 32767, response: "refused"},
		{name: "negative", status: 0x8000, bad: true},
		{name: "minus one", status: 0xffff, bad: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := dot11test.AssociationResponse(staMAC, apMAC, tc.status)
			f, err := dot11.NewDecoder(nil).Decode(dot11.FrameTypeAssociationResponse, payload, nil, testMeta)
			if tc.bad {
				requireMalformed(t, err)
				return
			}
			require.NoError(t, err)
			r := f.(*dot11.AssociationResponse)
			assert.Equal(t, tc.response, r.Response)
			assert.Equal(t, int(tc.status), r.ResponseCode)
		})
	}
}

func TestDecodeAssociationRequest(t *testing.T) {
	payload := dot11test.AssociationRequest(staMAC, apMAC, dot11test.CapabilityESS,
		dot11test.SSID("corp"), dot11test.Rates(), dot11test.RSN(4, 8))
	r := decode(t, dot11.FrameTypeAssociationRequest, payload).(*dot11.AssociationRequest)
	assert.Equal(t, "corp", r.SSID)
	assert.Equal(t, staMAC, r.Transmitter)
	assert.Equal(t, apMAC, r.BSSID)
	assert.Equal(t, "WPA3-SAE-CCMP", r.Security)

	missing := dot11test.AssociationRequest(staMAC, apMAC, dot11test.CapabilityESS, dot11test.Rates())
	_, err := dot11.NewDecoder(nil).Decode(dot11.FrameTypeAssociationRequest, missing, nil, testMeta)
	requireMalformed(t, err)
}

func TestDecodeProbeRequest(t *testing.T) {
	named := decode(t, dot11.FrameTypeProbeRequest, dot11test.ProbeRequest(staMAC, dot11test.SSID("home"))).(*dot11.ProbeRequest)
	require.NotNil(t, named.SSID)
	assert.Equal(t, "home", *named.SSID)
	assert.False(t, named.Broadcast)

	wildcard := decode(t, dot11.FrameTypeProbeRequest, dot11test.ProbeRequest(staMAC, dot11test.SSID(""))).(*dot11.ProbeRequest)
	require.NotNil(t, wildcard.SSID)
	assert.True(t, wildcard.Broadcast)

	bare := decode(t, dot11.FrameTypeProbeRequest, dot11test.ProbeRequest(staMAC)).(*dot11.ProbeRequest)
	assert.Nil(t, bare.SSID)
	ssid, carries := dot11.SSIDOf(bare)
	assert.True(t, carries)
	assert.Nil(t, ssid)
}

func TestDecodeProbeResponse(t *testing.T) {
	payload := dot11test.ProbeResponse(staMAC, apMAC, dot11test.CapabilityESS,
		dot11test.SSID("guest"), dot11test.Rates(), dot11test.WPA(), dot11test.RSN(4, 2))
	r := decode(t, dot11.FrameTypeProbeResponse, payload).(*dot11.ProbeResponse)
	require.NotNil(t, r.SSID)
	assert.Equal(t, "guest", *r.SSID)
	assert.Equal(t, "WPA-PSK-TKIP, WPA2-PSK-CCMP", r.Security)
	assert.False(t, r.WPS)
}

func TestDecodeAuthentication(t *testing.T) {
	a := decode(t, dot11.FrameTypeAuthentication, dot11test.Authentication(apMAC, staMAC, 3, 1, 0)).(*dot11.Authentication)
	assert.Equal(t, "sae", a.Algorithm)
	assert.Equal(t, uint16(1), a.Sequence)
	assert.Equal(t, "success", a.Status)

	failed := decode(t, dot11.FrameTypeAuthentication, dot11test.Authentication(apMAC, staMAC, 0, 2, 17)).(*dot11.Authentication)
	assert.Equal(t, "open_system", failed.Algorithm)
	assert.Equal(t, "failure", failed.Status)
}

func TestDecodeIsIdempotent(t *testing.T) {
	payload := dot11test.Beacon(apMAC, dot11test.CapabilityESS, dot11test.SSID("same"), dot11test.Rates(), dot11test.RSN(4, 2))
	dec := dot11.NewDecoder(nil)
	a, err := dec.Decode(dot11.FrameTypeBeacon, payload, nil, testMeta)
	require.NoError(t, err)
	b, err := dec.Decode(dot11.FrameTypeBeacon, payload, nil, testMeta)
	require.NoError(t, err)

	exportAll := cmp.Exporter(func(reflect.Type) bool { return true })
	if diff := cmp.Diff(a, b, exportAll); diff != "" {
		t.Fatalf("decoding twice differs (-first +second):\n%s", diff)
	}
}

func TestDecodedFrameOwnsItsBuffers(t *testing.T) {
	payload := dot11test.Beacon(apMAC, dot11test.CapabilityESS, dot11test.SSID("mine"))
	f := decode(t, dot11.FrameTypeBeacon, payload)
	for i := range payload {
		payload[i] = 0
	}
	b := f.(*dot11.Beacon)
	assert.Equal(t, "mine", b.SSID)
	ssid, ok := b.Tagged.SSID()
	require.True(t, ok)
	assert.Equal(t, "mine", ssid)
}

func TestAnonymizerRunsAfterValidation(t *testing.T) {
	anon, err := dot11.NewKeyedAnonymizer([]byte("test-key"))
	require.NoError(t, err)
	dec := dot11.NewDecoder(anon)

	missing := dot11test.Beacon(apMAC, dot11test.CapabilityESS, dot11test.Rates())
	_, err = dec.Decode(dot11.FrameTypeBeacon, missing, nil, testMeta)
	requireMalformed(t, err)

	payload := dot11test.Beacon(apMAC, dot11test.CapabilityESS, dot11test.SSID("CoffeeShop"))
	b := decode(t, dot11.FrameTypeBeacon, payload).(*dot11.Beacon)
	f, err := dec.Decode(dot11.FrameTypeBeacon, payload, nil, testMeta)
	require.NoError(t, err)
	anonymized := f.(*dot11.Beacon)

	assert.NotEqual(t, b.Transmitter, anonymized.Transmitter)
	assert.Equal(t, anon.MAC(apMAC), anonymized.Transmitter)
	assert.Equal(t, anon.SSID("CoffeeShop"), anonymized.SSID)
	assert.Equal(t, b.TransmitterFingerprint, anonymized.TransmitterFingerprint)
}

func TestParseFrameType(t *testing.T) {
	ft, err := dot11.ParseFrameType("Beacon")
	require.NoError(t, err)
	assert.Equal(t, dot11.FrameTypeBeacon, ft)

	ft, err = dot11.ParseFrameType("deauthentication")
	require.NoError(t, err)
	assert.Equal(t, dot11.FrameTypeDeauthentication, ft)

	_, err = dot11.ParseFrameType("data")
	assert.True(t, errors.Is(err, dot11.ErrUnknownFrameType))
}
