package dot11

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
	"strings"

	"github.com/google/gopacket/layers"
)

const (
	SecurityOpen = "NONE"
	SecurityWEP  = "WEP"
)

var errShortSuite = errors.New("short cipher suite")

var cipherNames = map[byte]string{
	1:  "WEP40",
	2:  "TKIP",
	4:  "CCMP",
	5:  "WEP104",
	8:  "GCMP",
	9:  "GCMP256",
	10: "CCMP256",
}

var akmNames = map[byte]string{
	1:  "EAP",
	2:  "PSK",
	3:  "FT-EAP",
	4:  "FT-PSK",
	5:  "EAP-SHA256",
	6:  "PSK-SHA256",
	8:  "SAE",
	9:  "FT-SAE",
	12: "EAP-SUITE-B",
	18: "OWE",
}

// suiteSet is the parsed content of an RSN or WPA element.
type suiteSet struct {
	pairwise []string
	akms     []string
}

func parseSuites(body []byte, oui []byte) (suiteSet, error) {
	var s suiteSet
	// version + group cipher
	if len(body) < 6 {
		return s, errShortSuite
	}
	off := 6
	if len(body) == off {
		return s, nil
	}
	names, next, err := readSuiteList(body, off, oui, cipherNames)
	if err != nil {
		return s, err
	}
	s.pairwise = names
	off = next
	if len(body) == off {
		return s, nil
	}
	names, _, err = readSuiteList(body, off, oui, akmNames)
	if err != nil {
		return s, err
	}
	s.akms = names
	return s, nil
}

func readSuiteList(body []byte, off int, oui []byte, table map[byte]string) ([]string, int, error) {
	if len(body) < off+2 {
		return nil, off, errShortSuite
	}
	n := int(binary.LittleEndian.Uint16(body[off:]))
	off += 2
	if len(body) < off+4*n {
		return nil, off, errShortSuite
	}
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		suite := body[off : off+4]
		off += 4
		if !bytes.Equal(suite[:3], oui) {
			continue
		}
		if name, ok := table[suite[3]]; ok {
			names = append(names, name)
		}
	}
	return names, off, nil
}

// Security summarizes the protection a network advertises, e.g. "WPA2-PSK-CCMP".
// Multiple protocols are joined with ", ". privacy is the capability bit.
func (tp TaggedParameters) Security(privacy bool) string {
	var parts []string

	if rsn, ok := tp.Element(layers.Dot11InformationElementIDRSNInfo); ok {
		s, err := parseSuites(rsn.Body, ouiIEEE)
		if err != nil {
			parts = append(parts, "WPA2-INVALID")
		} else {
			label := "WPA2"
			if contains(s.akms, "SAE") || contains(s.akms, "FT-SAE") || contains(s.akms, "OWE") {
				label = "WPA3"
			}
			parts = append(parts, formatSuite(label, s))
		}
	}

	if wpa, ok := tp.Vendor(ouiMicrosoft, vendorTypeWPA); ok {
		s, err := parseSuites(wpa.Body[4:], ouiMicrosoft)
		if err != nil {
			parts = append(parts, "WPA-INVALID")
		} else {
			parts = append(parts, formatSuite("WPA", s))
		}
	}

	if len(parts) == 0 {
		if privacy {
			return SecurityWEP
		}
		return SecurityOpen
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func formatSuite(label string, s suiteSet) string {
	out := label
	if len(s.akms) > 0 {
		out += "-" + strings.Join(dedupe(s.akms), "/")
	}
	if len(s.pairwise) > 0 {
		out += "-" + strings.Join(dedupe(s.pairwise), "/")
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := list[:0:0]
	for _, s := range list {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
