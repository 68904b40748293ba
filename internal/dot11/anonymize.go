package dot11

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Anonymizer pseudonymizes identifying values before a frame leaves the decoder.
type Anonymizer interface {
	MAC(addr string) string
	SSID(ssid string) string
}

// KeyedAnonymizer maps values through a keyed BLAKE2b hash so the same input
// always yields the same pseudonym under one key.
type KeyedAnonymizer struct {
	key []byte
}

func NewKeyedAnonymizer(key []byte) (*KeyedAnonymizer, error) {
	if len(key) == 0 {
		return nil, errors.New("anonymizer key is empty")
	}
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("anonymizer key longer than %d bytes", blake2b.Size)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &KeyedAnonymizer{key: k}, nil
}

func (a *KeyedAnonymizer) sum(domain byte, value string) []byte {
	h, err := blake2b.New256(a.key)
	if err != nil {
		// key length is checked in the constructor
		panic(err)
	}
	h.Write([]byte{domain})
	h.Write([]byte(value))
	return h.Sum(nil)
}

// MAC returns a locally administered unicast address derived from addr.
// Empty addresses stay empty.
func (a *KeyedAnonymizer) MAC(addr string) string {
	if addr == "" {
		return ""
	}
	b := a.sum('m', addr)[:6]
	b[0] = (b[0] | 0x02) &^ 0x01
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

// SSID keeps the empty (hidden) SSID distinguishable from named networks.
func (a *KeyedAnonymizer) SSID(ssid string) string {
	if ssid == "" {
		return ""
	}
	return "anon-" + hex.EncodeToString(a.sum('s', ssid)[:6])
}
