// Package dot11test builds raw management frames for tests.
package dot11test

import (
	"encoding/binary"
	"net"

	"airguard/internal/dot11"
)

const (
	Broadcast = "ff:ff:ff:ff:ff:ff"

	CapabilityESS     uint16 = 0x0001
	CapabilityPrivacy uint16 = 0x0010
)

func mac(s string) []byte {
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		panic("dot11test: bad MAC " + s)
	}
	return hw
}

// Header returns a 24-byte management header.
func Header(t dot11.FrameType, dst, src, bssid string) []byte {
	h := make([]byte, 0, 24)
	h = append(h, byte(t)<<2, 0x00, 0x3a, 0x01)
	h = append(h, mac(dst)...)
	h = append(h, mac(src)...)
	h = append(h, mac(bssid)...)
	h = append(h, 0x00, 0x00)
	return h
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// Element encodes one information element.
func Element(id byte, body []byte) []byte {
	return append([]byte{id, byte(len(body))}, body...)
}

func SSID(s string) []byte {
	return Element(0, []byte(s))
}

func Rates() []byte {
	return Element(1, []byte{0x82, 0x84, 0x8b, 0x96, 0x0c, 0x12, 0x18, 0x24})
}

func DSSet(channel byte) []byte {
	return Element(3, []byte{channel})
}

// RSN encodes an RSN element with one CCMP-style pairwise suite and one AKM.
func RSN(pairwise, akm byte) []byte {
	body := []byte{0x01, 0x00, 0x00, 0x0f, 0xac, pairwise}
	body = append(body, 0x01, 0x00, 0x00, 0x0f, 0xac, pairwise)
	body = append(body, 0x01, 0x00, 0x00, 0x0f, 0xac, akm)
	body = append(body, 0x00, 0x00)
	return Element(48, body)
}

// WPA encodes a WPA1 vendor element with TKIP and PSK.
func WPA() []byte {
	body := []byte{0x00, 0x50, 0xf2, 0x01, 0x01, 0x00, 0x00, 0x50, 0xf2, 0x02}
	body = append(body, 0x01, 0x00, 0x00, 0x50, 0xf2, 0x02)
	body = append(body, 0x01, 0x00, 0x00, 0x50, 0xf2, 0x02)
	return Element(221, body)
}

func WPS() []byte {
	return Element(221, []byte{0x00, 0x50, 0xf2, 0x04, 0x10, 0x4a, 0x00, 0x01, 0x10})
}

// Pwnagotchi splits a JSON advertisement across as many 222 elements as needed.
func Pwnagotchi(advertisement string) []byte {
	var out []byte
	data := []byte(advertisement)
	for len(data) > 0 {
		n := len(data)
		if n > 255 {
			n = 255
		}
		out = append(out, Element(222, data[:n])...)
		data = data[n:]
	}
	return out
}

func join(parts [][]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func beaconLike(t dot11.FrameType, dst, src string, capability uint16, elements [][]byte) []byte {
	p := Header(t, dst, src, src)
	p = append(p, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88) // timestamp
	p = append(p, le16(100)...)                                   // interval
	p = append(p, le16(capability)...)
	return append(p, join(elements)...)
}

// Beacon builds a beacon sent by src, which is also the BSSID.
func Beacon(src string, capability uint16, elements ...[]byte) []byte {
	return beaconLike(dot11.FrameTypeBeacon, Broadcast, src, capability, elements)
}

func ProbeResponse(dst, src string, capability uint16, elements ...[]byte) []byte {
	return beaconLike(dot11.FrameTypeProbeResponse, dst, src, capability, elements)
}

func ProbeRequest(src string, elements ...[]byte) []byte {
	return append(Header(dot11.FrameTypeProbeRequest, Broadcast, src, Broadcast), join(elements)...)
}

func Deauthentication(dst, src string, reason uint16) []byte {
	return append(Header(dot11.FrameTypeDeauthentication, dst, src, src), le16(reason)...)
}

func Disassociation(dst, src string, reason uint16) []byte {
	return append(Header(dot11.FrameTypeDisassociation, dst, src, src), le16(reason)...)
}

func AssociationRequest(src, bssid string, capability uint16, elements ...[]byte) []byte {
	p := Header(dot11.FrameTypeAssociationRequest, bssid, src, bssid)
	p = append(p, le16(capability)...)
	p = append(p, le16(10)...) // listen interval
	return append(p, join(elements)...)
}

func AssociationResponse(dst, src string, status uint16) []byte {
	p := Header(dot11.FrameTypeAssociationResponse, dst, src, src)
	p = append(p, le16(CapabilityESS)...)
	p = append(p, le16(status)...)
	p = append(p, le16(0xc001)...) // association id
	return p
}

func Authentication(dst, src string, algorithm, sequence, status uint16) []byte {
	p := Header(dot11.FrameTypeAuthentication, dst, src, dst)
	p = append(p, le16(algorithm)...)
	p = append(p, le16(sequence)...)
	return append(p, le16(status)...)
}
