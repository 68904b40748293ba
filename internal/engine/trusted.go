package engine

import (
	"strings"

	"airguard/internal/config"
	"airguard/internal/dot11"
)

// TrustedSet holds the transmitters whose frames are never evaluated, either
// everywhere or only when seen by a specific tap.
type TrustedSet struct {
	Enabled bool
	Global  map[string]struct{}
	PerTap  map[string]map[string]struct{}
}

// buildTrustedSet normalizes the configured addresses. When frames are
// anonymized the addresses go through the same anonymizer so they compare
// against decoded transmitters.
func buildTrustedSet(cfg *config.Config, anon dot11.Anonymizer) *TrustedSet {
	ts := &TrustedSet{Enabled: cfg.Trusted.Enabled}
	if !ts.Enabled {
		return ts
	}
	ts.Global = buildMACSet(cfg.Trusted.Transmitters, anon)
	ts.PerTap = buildMACMap(cfg.Trusted.TapTransmitters, anon)
	return ts
}

func buildMACSet(values []string, anon dot11.Anonymizer) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		mac := normalizeMAC(v)
		if mac == "" {
			continue
		}
		if anon != nil {
			mac = anon.MAC(mac)
		}
		set[mac] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

func buildMACMap(values map[string][]string, anon dot11.Anonymizer) map[string]map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]map[string]struct{}, len(values))
	for tap, list := range values {
		set := buildMACSet(list, anon)
		if len(set) == 0 {
			continue
		}
		out[tap] = set
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (t *TrustedSet) IsTrusted(tap, transmitter string) bool {
	if t == nil || !t.Enabled {
		return false
	}
	mac := normalizeMAC(transmitter)
	if mac == "" {
		return false
	}
	if _, ok := t.Global[mac]; ok {
		return true
	}
	if set, ok := t.PerTap[tap]; ok {
		if _, ok := set[mac]; ok {
			return true
		}
	}
	return false
}

// normalizeMAC accepts colon, dash, dot or bare hex notation and returns
// lower-case colon form, or "" when the input is not 48 bits.
func normalizeMAC(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	digits := make([]byte, 0, 12)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
			digits = append(digits, c)
		case c >= 'A' && c <= 'F':
			digits = append(digits, c-'A'+'a')
		case c == ':' || c == '-' || c == '.':
		default:
			return ""
		}
	}
	if len(digits) != 12 {
		return ""
	}
	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.Write(digits[i : i+2])
	}
	return b.String()
}
