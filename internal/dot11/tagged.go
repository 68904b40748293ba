package dot11

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/gopacket/layers"
)

var (
	ouiMicrosoft = []byte{0x00, 0x50, 0xf2}
	ouiIEEE      = []byte{0x00, 0x0f, 0xac}
)

const (
	vendorTypeWPA = 0x01
	vendorTypeWPS = 0x04
)

// Element is one tagged parameter. Body aliases the decoded payload.
type Element struct {
	ID   layers.Dot11InformationElementID
	Body []byte
}

// TaggedParameters is the ordered list of information elements of a frame.
type TaggedParameters struct {
	elements  []Element
	truncated bool
}

// ParseTaggedParameters walks the information elements in data. A trailing
// element whose declared length runs past the buffer stops the walk and marks
// the set as truncated; everything before it is kept.
func ParseTaggedParameters(data []byte) TaggedParameters {
	var tp TaggedParameters
	off := 0
	for off < len(data) {
		if len(data)-off < 2 {
			tp.truncated = true
			break
		}
		id := layers.Dot11InformationElementID(data[off])
		length := int(data[off+1])
		off += 2
		if off+length > len(data) {
			tp.truncated = true
			break
		}
		tp.elements = append(tp.elements, Element{ID: id, Body: data[off : off+length]})
		off += length
	}
	return tp
}

func (tp TaggedParameters) Elements() []Element {
	return tp.elements
}

func (tp TaggedParameters) Truncated() bool {
	return tp.truncated
}

// Element returns the first element with the given id.
func (tp TaggedParameters) Element(id layers.Dot11InformationElementID) (Element, bool) {
	for _, e := range tp.elements {
		if e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}

// All returns every element with the given id, in frame order.
func (tp TaggedParameters) All(id layers.Dot11InformationElementID) []Element {
	var out []Element
	for _, e := range tp.elements {
		if e.ID == id {
			out = append(out, e)
		}
	}
	return out
}

// SSID returns the first SSID element. A zero-length element yields ("", true);
// a missing element yields ("", false).
func (tp TaggedParameters) SSID() (string, bool) {
	e, ok := tp.Element(layers.Dot11InformationElementIDSSID)
	if !ok {
		return "", false
	}
	return string(e.Body), true
}

// Vendor returns the first vendor-specific element with the given OUI and type.
func (tp TaggedParameters) Vendor(oui []byte, vendorType byte) (Element, bool) {
	for _, e := range tp.elements {
		if e.ID != layers.Dot11InformationElementIDVendor || len(e.Body) < 4 {
			continue
		}
		if bytes.Equal(e.Body[:3], oui) && e.Body[3] == vendorType {
			return e, true
		}
	}
	return Element{}, false
}

func (tp TaggedParameters) HasWPS() bool {
	_, ok := tp.Vendor(ouiMicrosoft, vendorTypeWPS)
	return ok
}

// Elements that change between beacons of the same device are left out of
// the fingerprint.
var volatileElements = map[layers.Dot11InformationElementID]bool{
	layers.Dot11InformationElementIDSSID:         true,
	layers.Dot11InformationElementIDDSSet:        true,
	layers.Dot11InformationElementIDTIM:          true,
	layers.Dot11InformationElementIDQBSSLoadElem: true,
	layers.Dot11InformationElementIDERPInfo:      true,
	layers.Dot11InformationElementIDHTInfo:       true,
	layers.Dot11InformationElementIDVHTOperation: true,
	elementIDPwnagotchi:                          true,
}

var contentElements = map[layers.Dot11InformationElementID]bool{
	layers.Dot11InformationElementIDRates:           true,
	layers.Dot11InformationElementIDESRates:         true,
	layers.Dot11InformationElementIDHTCapabilities:  true,
	layers.Dot11InformationElementIDVHTCapabilities: true,
	layers.Dot11InformationElementIDExtCapability:   true,
	layers.Dot11InformationElementIDRSNInfo:         true,
}

// Fingerprint is the SHA-256 hex digest of the element ordering plus the
// content of capability elements. Vendor elements contribute OUI and type.
func (tp TaggedParameters) Fingerprint() string {
	h := sha256.New()
	for _, e := range tp.elements {
		if volatileElements[e.ID] {
			continue
		}
		h.Write([]byte{byte(e.ID)})
		switch {
		case contentElements[e.ID]:
			h.Write([]byte{byte(len(e.Body))})
			h.Write(e.Body)
		case e.ID == layers.Dot11InformationElementIDVendor && len(e.Body) >= 4:
			h.Write(e.Body[:4])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func structuralFingerprint(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
