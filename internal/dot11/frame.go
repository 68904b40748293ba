package dot11

import (
	"strings"
	"time"

	"github.com/google/gopacket/layers"
)

// FrameType is a supported 802.11 management subtype. Values match the
// gopacket Dot11Type codes so captured frames map without a lookup table.
type FrameType uint8

const (
	FrameTypeAssociationRequest  = FrameType(layers.Dot11TypeMgmtAssociationReq)
	FrameTypeAssociationResponse = FrameType(layers.Dot11TypeMgmtAssociationResp)
	FrameTypeProbeRequest        = FrameType(layers.Dot11TypeMgmtProbeReq)
	FrameTypeProbeResponse       = FrameType(layers.Dot11TypeMgmtProbeResp)
	FrameTypeBeacon              = FrameType(layers.Dot11TypeMgmtBeacon)
	FrameTypeDisassociation      = FrameType(layers.Dot11TypeMgmtDisassociation)
	FrameTypeAuthentication      = FrameType(layers.Dot11TypeMgmtAuthentication)
	FrameTypeDeauthentication    = FrameType(layers.Dot11TypeMgmtDeauthentication)
)

var frameTypeNames = map[FrameType]string{
	FrameTypeAssociationRequest:  "assoc_req",
	FrameTypeAssociationResponse: "assoc_resp",
	FrameTypeProbeRequest:        "probe_req",
	FrameTypeProbeResponse:       "probe_resp",
	FrameTypeBeacon:              "beacon",
	FrameTypeDisassociation:      "disassoc",
	FrameTypeAuthentication:      "auth",
	FrameTypeDeauthentication:    "deauth",
}

var frameTypeAliases = map[string]FrameType{
	"association_request":  FrameTypeAssociationRequest,
	"association_response": FrameTypeAssociationResponse,
	"probe_request":        FrameTypeProbeRequest,
	"probe_response":       FrameTypeProbeResponse,
	"disassociation":       FrameTypeDisassociation,
	"authentication":       FrameTypeAuthentication,
	"deauthentication":     FrameTypeDeauthentication,
}

func (t FrameType) String() string {
	if name, ok := frameTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseFrameType resolves a wire name such as "beacon" or "deauth".
func ParseFrameType(name string) (FrameType, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for t, short := range frameTypeNames {
		if short == n {
			return t, nil
		}
	}
	if t, ok := frameTypeAliases[n]; ok {
		return t, nil
	}
	return 0, &DecodeError{Reason: "frame type " + n, Err: ErrUnknownFrameType}
}

// FrameTypeFromDot11 maps a captured subtype onto a supported frame type.
func FrameTypeFromDot11(t layers.Dot11Type) (FrameType, bool) {
	ft := FrameType(t)
	_, ok := frameTypeNames[ft]
	return ft, ok
}

// Meta is the radio metadata reported by the capturing tap.
type Meta struct {
	AntennaSignal int    `json:"antenna_signal"`
	Frequency     int    `json:"frequency"`
	Channel       int    `json:"channel"`
	MACTimestamp  uint64 `json:"mac_timestamp"`
	Malformed     bool   `json:"malformed"`
	WEP           bool   `json:"wep"`
}

// Capture is one frame as delivered by a tap, before decoding.
type Capture struct {
	Type       FrameType
	Payload    []byte
	Header     []byte
	Meta       Meta
	Tap        string
	ReceivedAt time.Time
}

// Frame is a decoded management frame. The set of implementations is closed:
// *Beacon, *Deauthentication, *Disassociation, *AssociationRequest,
// *AssociationResponse, *ProbeRequest, *ProbeResponse and *Authentication.
type Frame interface {
	Type() FrameType
	Meta() Meta
	RawHeader() []byte
	RawPayload() []byte
	isFrame()
}

type common struct {
	meta    Meta
	header  []byte
	payload []byte
}

func (c common) Meta() Meta         { return c.meta }
func (c common) RawHeader() []byte  { return c.header }
func (c common) RawPayload() []byte { return c.payload }
func (common) isFrame()             {}

type Beacon struct {
	common
	SSID                   string
	Transmitter            string
	BSSID                  string
	Security               string
	WPS                    bool
	TransmitterFingerprint string
	Tagged                 TaggedParameters
}

func (*Beacon) Type() FrameType { return FrameTypeBeacon }

// Advertisement returns the pwnagotchi advertisement carried by the beacon.
func (b *Beacon) Advertisement() (Advertisement, bool) {
	return ExtractAdvertisement(b.Tagged)
}

type Deauthentication struct {
	common
	Destination            string
	Transmitter            string
	BSSID                  string
	ReasonCode             uint16
	Reason                 string
	TransmitterFingerprint string
}

func (*Deauthentication) Type() FrameType { return FrameTypeDeauthentication }

type Disassociation struct {
	common
	Destination            string
	Transmitter            string
	BSSID                  string
	ReasonCode             uint16
	Reason                 string
	TransmitterFingerprint string
}

func (*Disassociation) Type() FrameType { return FrameTypeDisassociation }

type AssociationRequest struct {
	common
	Transmitter            string
	Destination            string
	BSSID                  string
	SSID                   string
	Security               string
	TransmitterFingerprint string
}

func (*AssociationRequest) Type() FrameType { return FrameTypeAssociationRequest }

type AssociationResponse struct {
	common
	Transmitter  string
	Destination  string
	BSSID        string
	ResponseCode int
	Response     string
}

func (*AssociationResponse) Type() FrameType { return FrameTypeAssociationResponse }

type ProbeRequest struct {
	common
	Requester string
	// SSID is nil when the request carries no SSID element.
	SSID      *string
	Broadcast bool
}

func (*ProbeRequest) Type() FrameType { return FrameTypeProbeRequest }

type ProbeResponse struct {
	common
	Transmitter            string
	Destination            string
	BSSID                  string
	SSID                   *string
	Security               string
	WPS                    bool
	TransmitterFingerprint string
}

func (*ProbeResponse) Type() FrameType { return FrameTypeProbeResponse }

type Authentication struct {
	common
	Transmitter string
	Destination string
	BSSID       string
	Algorithm   string
	Sequence    uint16
	StatusCode  uint16
	Status      string
}

func (*Authentication) Type() FrameType { return FrameTypeAuthentication }

// TransmitterOf returns the transmitting station of any frame variant.
func TransmitterOf(f Frame) string {
	switch v := f.(type) {
	case *Beacon:
		return v.Transmitter
	case *Deauthentication:
		return v.Transmitter
	case *Disassociation:
		return v.Transmitter
	case *AssociationRequest:
		return v.Transmitter
	case *AssociationResponse:
		return v.Transmitter
	case *ProbeRequest:
		return v.Requester
	case *ProbeResponse:
		return v.Transmitter
	case *Authentication:
		return v.Transmitter
	}
	return ""
}

// SSIDOf returns the SSID of frames that carry one. The second value reports
// whether the frame kind carries SSIDs at all.
func SSIDOf(f Frame) (*string, bool) {
	switch v := f.(type) {
	case *Beacon:
		s := v.SSID
		return &s, true
	case *AssociationRequest:
		s := v.SSID
		return &s, true
	case *ProbeRequest:
		return v.SSID, true
	case *ProbeResponse:
		return v.SSID, true
	case *Deauthentication, *Disassociation, *AssociationResponse, *Authentication:
		return nil, false
	}
	return nil, false
}
