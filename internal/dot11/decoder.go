package dot11

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	headerLen = 24

	beaconTaggedOffset    = 36
	probeRespTaggedOffset = 36
	assocReqTaggedOffset  = 28
	probeReqTaggedOffset  = 24

	beaconCapabilityOffset   = 34
	assocReqCapabilityOffset = 24

	capabilityPrivacy = 0x0010
)

// Decoder turns captured management frames into typed Frames. It holds no
// mutable state and is safe for concurrent use.
type Decoder struct {
	anon Anonymizer
}

// NewDecoder returns a decoder. anon may be nil to disable anonymization.
func NewDecoder(anon Anonymizer) *Decoder {
	return &Decoder{anon: anon}
}

func (d *Decoder) DecodeCapture(c Capture) (Frame, error) {
	return d.Decode(c.Type, c.Payload, c.Header, c.Meta)
}

// Decode validates and decodes one frame. payload is the 802.11 frame starting
// at frame control, header the radiotap header it was captured with. The
// returned frame owns copies of both buffers.
func (d *Decoder) Decode(t FrameType, payload, header []byte, meta Meta) (Frame, error) {
	payload = bytes.Clone(payload)
	header = bytes.Clone(header)
	if meta.Channel == 0 && meta.Frequency > 0 {
		meta.Channel = ChannelFromFrequency(meta.Frequency)
	}
	c := common{meta: meta, header: header, payload: payload}

	var (
		f   Frame
		err error
	)
	switch t {
	case FrameTypeBeacon:
		f, err = decodeBeacon(c)
	case FrameTypeDeauthentication:
		f, err = decodeDeauthentication(c)
	case FrameTypeDisassociation:
		f, err = decodeDisassociation(c)
	case FrameTypeAssociationRequest:
		f, err = decodeAssociationRequest(c)
	case FrameTypeAssociationResponse:
		f, err = decodeAssociationResponse(c)
	case FrameTypeProbeRequest:
		f, err = decodeProbeRequest(c)
	case FrameTypeProbeResponse:
		f, err = decodeProbeResponse(c)
	case FrameTypeAuthentication:
		f, err = decodeAuthentication(c)
	default:
		return nil, &DecodeError{Type: t, Reason: fmt.Sprintf("subtype 0x%02x", uint8(t)), Err: ErrUnknownFrameType}
	}
	if err != nil {
		return nil, err
	}
	if d.anon != nil {
		anonymize(f, d.anon)
	}
	return f, nil
}

func macAt(p []byte, off int) string {
	if len(p) < off+6 {
		return ""
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", p[off], p[off+1], p[off+2], p[off+3], p[off+4], p[off+5])
}

func addr1(p []byte) string { return macAt(p, 4) }
func addr2(p []byte) string { return macAt(p, 10) }
func addr3(p []byte) string { return macAt(p, 16) }

func privacyBit(p []byte, off int) bool {
	return binary.LittleEndian.Uint16(p[off:off+2])&capabilityPrivacy != 0
}

func decodeBeacon(c common) (Frame, error) {
	p := c.payload
	if len(p) < beaconTaggedOffset {
		return nil, malformed(FrameTypeBeacon, fmt.Sprintf("payload %d bytes, fixed fields need %d", len(p), beaconTaggedOffset))
	}
	tp := ParseTaggedParameters(p[beaconTaggedOffset:])
	ssid, ok := tp.SSID()
	if !ok {
		return nil, malformed(FrameTypeBeacon, "missing SSID element")
	}
	privacy := privacyBit(p, beaconCapabilityOffset)
	c.meta.WEP = c.meta.WEP || privacy
	return &Beacon{
		common:                 c,
		SSID:                   ssid,
		Transmitter:            addr2(p),
		BSSID:                  addr3(p),
		Security:               tp.Security(privacy),
		WPS:                    tp.HasWPS(),
		TransmitterFingerprint: tp.Fingerprint(),
		Tagged:                 tp,
	}, nil
}

func decodeReason(t FrameType, p []byte) (uint16, string, error) {
	if len(p) < headerLen+2 {
		return 0, "", malformed(t, fmt.Sprintf("payload %d bytes, reason code needs %d", len(p), headerLen+2))
	}
	code := binary.LittleEndian.Uint16(p[headerLen : headerLen+2])
	return code, ReasonString(code), nil
}

func decodeDeauthentication(c common) (Frame, error) {
	p := c.payload
	code, reason, err := decodeReason(FrameTypeDeauthentication, p)
	if err != nil {
		return nil, err
	}
	return &Deauthentication{
		common:                 c,
		Destination:            addr1(p),
		Transmitter:            addr2(p),
		BSSID:                  addr3(p),
		ReasonCode:             code,
		Reason:                 reason,
		TransmitterFingerprint: structuralFingerprint(p[0:4], p[headerLen:headerLen+2]),
	}, nil
}

func decodeDisassociation(c common) (Frame, error) {
	p := c.payload
	code, reason, err := decodeReason(FrameTypeDisassociation, p)
	if err != nil {
		return nil, err
	}
	return &Disassociation{
		common:                 c,
		Destination:            addr1(p),
		Transmitter:            addr2(p),
		BSSID:                  addr3(p),
		ReasonCode:             code,
		Reason:                 reason,
		TransmitterFingerprint: structuralFingerprint(p[0:4], p[headerLen:headerLen+2]),
	}, nil
}

func decodeAssociationRequest(c common) (Frame, error) {
	p := c.payload
	if len(p) < assocReqTaggedOffset {
		return nil, malformed(FrameTypeAssociationRequest, fmt.Sprintf("payload %d bytes, fixed fields need %d", len(p), assocReqTaggedOffset))
	}
	tp := ParseTaggedParameters(p[assocReqTaggedOffset:])
	ssid, ok := tp.SSID()
	if !ok {
		return nil, malformed(FrameTypeAssociationRequest, "missing SSID element")
	}
	privacy := privacyBit(p, assocReqCapabilityOffset)
	c.meta.WEP = c.meta.WEP || privacy
	return &AssociationRequest{
		common:                 c,
		Transmitter:            addr2(p),
		Destination:            addr1(p),
		BSSID:                  addr3(p),
		SSID:                   ssid,
		Security:               tp.Security(privacy),
		TransmitterFingerprint: tp.Fingerprint(),
	}, nil
}

func decodeAssociationResponse(c common) (Frame, error) {
	p := c.payload
	// capability (24-25), status (26-27)
	if len(p) < 28 {
		return nil, malformed(FrameTypeAssociationResponse, fmt.Sprintf("payload %d bytes, status code needs 28", len(p)))
	}
	status := int(int16(binary.LittleEndian.Uint16(p[26:28])))
	if status < 0 {
		return nil, malformed(FrameTypeAssociationResponse, fmt.Sprintf("negative status code %d", status))
	}
	response := "refused"
	if status == 0 {
		response = "success"
	}
	return &AssociationResponse{
		common:       c,
		Transmitter:  addr2(p),
		Destination:  addr1(p),
		BSSID:        addr3(p),
		ResponseCode: status,
		Response:     response,
	}, nil
}

func decodeProbeRequest(c common) (Frame, error) {
	p := c.payload
	if len(p) < probeReqTaggedOffset {
		return nil, malformed(FrameTypeProbeRequest, fmt.Sprintf("payload %d bytes, header needs %d", len(p), probeReqTaggedOffset))
	}
	tp := ParseTaggedParameters(p[probeReqTaggedOffset:])
	f := &ProbeRequest{common: c, Requester: addr2(p), Broadcast: true}
	if s, ok := tp.SSID(); ok {
		f.SSID = &s
		f.Broadcast = s == ""
	}
	return f, nil
}

func decodeProbeResponse(c common) (Frame, error) {
	p := c.payload
	if len(p) < probeRespTaggedOffset {
		return nil, malformed(FrameTypeProbeResponse, fmt.Sprintf("payload %d bytes, fixed fields need %d", len(p), probeRespTaggedOffset))
	}
	tp := ParseTaggedParameters(p[probeRespTaggedOffset:])
	privacy := privacyBit(p, beaconCapabilityOffset)
	c.meta.WEP = c.meta.WEP || privacy
	f := &ProbeResponse{
		common:                 c,
		Transmitter:            addr2(p),
		Destination:            addr1(p),
		BSSID:                  addr3(p),
		Security:               tp.Security(privacy),
		WPS:                    tp.HasWPS(),
		TransmitterFingerprint: tp.Fingerprint(),
	}
	if s, ok := tp.SSID(); ok {
		f.SSID = &s
	}
	return f, nil
}

func decodeAuthentication(c common) (Frame, error) {
	p := c.payload
	if len(p) < headerLen+6 {
		return nil, malformed(FrameTypeAuthentication, fmt.Sprintf("payload %d bytes, fixed fields need %d", len(p), headerLen+6))
	}
	alg := binary.LittleEndian.Uint16(p[24:26])
	status := binary.LittleEndian.Uint16(p[28:30])
	statusString := "failure"
	if status == 0 {
		statusString = "success"
	}
	return &Authentication{
		common:      c,
		Transmitter: addr2(p),
		Destination: addr1(p),
		BSSID:       addr3(p),
		Algorithm:   authAlgorithmString(alg),
		Sequence:    binary.LittleEndian.Uint16(p[26:28]),
		StatusCode:  status,
		Status:      statusString,
	}, nil
}

func anonymizeSSID(a Anonymizer, s *string) *string {
	if s == nil {
		return nil
	}
	v := a.SSID(*s)
	return &v
}

// anonymize rewrites the typed identity fields. Raw buffers are left alone.
func anonymize(f Frame, a Anonymizer) {
	switch v := f.(type) {
	case *Beacon:
		v.Transmitter, v.BSSID = a.MAC(v.Transmitter), a.MAC(v.BSSID)
		v.SSID = a.SSID(v.SSID)
	case *Deauthentication:
		v.Transmitter, v.Destination, v.BSSID = a.MAC(v.Transmitter), a.MAC(v.Destination), a.MAC(v.BSSID)
	case *Disassociation:
		v.Transmitter, v.Destination, v.BSSID = a.MAC(v.Transmitter), a.MAC(v.Destination), a.MAC(v.BSSID)
	case *AssociationRequest:
		v.Transmitter, v.Destination, v.BSSID = a.MAC(v.Transmitter), a.MAC(v.Destination), a.MAC(v.BSSID)
		v.SSID = a.SSID(v.SSID)
	case *AssociationResponse:
		v.Transmitter, v.Destination, v.BSSID = a.MAC(v.Transmitter), a.MAC(v.Destination), a.MAC(v.BSSID)
	case *ProbeRequest:
		v.Requester = a.MAC(v.Requester)
		v.SSID = anonymizeSSID(a, v.SSID)
	case *ProbeResponse:
		v.Transmitter, v.Destination, v.BSSID = a.MAC(v.Transmitter), a.MAC(v.Destination), a.MAC(v.BSSID)
		v.SSID = anonymizeSSID(a, v.SSID)
	case *Authentication:
		v.Transmitter, v.Destination, v.BSSID = a.MAC(v.Transmitter), a.MAC(v.Destination), a.MAC(v.BSSID)
	}
}
