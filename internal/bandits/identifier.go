package bandits

import (
	"fmt"

	"github.com/google/uuid"

	"airguard/internal/dot11"
)

type IdentifierType string

const (
	TypeFingerprint        IdentifierType = "FINGERPRINT"
	TypeSSID               IdentifierType = "SSID"
	TypeSignalStrength     IdentifierType = "SIGNAL_STRENGTH"
	TypePwnagotchiIdentity IdentifierType = "PWNAGOTCHI_IDENTITY"
)

const (
	MinSignal = -100
	MaxSignal = 0
)

// Identity is the persisted identity of an identifier loaded from storage.
// Identifiers built for tests or from built-ins carry none.
type Identity struct {
	DatabaseID int64
	UUID       uuid.UUID
}

// Identifier decides whether a frame belongs to a bandit. Matches reports
// ok=false when the identifier has no opinion about the frame kind.
type Identifier interface {
	Type() IdentifierType
	Persisted() *Identity
	Configuration() map[string]any
	Matches(f dot11.Frame) (match, ok bool)
	Describe() string
	isIdentifier()
}

type base struct {
	identity *Identity
}

func (b base) Persisted() *Identity { return b.identity }
func (base) isIdentifier()          {}

type FingerprintIdentifier struct {
	base
	Expected string
}

func NewFingerprintIdentifier(expected string, identity *Identity) *FingerprintIdentifier {
	return &FingerprintIdentifier{base: base{identity: identity}, Expected: expected}
}

func (*FingerprintIdentifier) Type() IdentifierType { return TypeFingerprint }

func (i *FingerprintIdentifier) Configuration() map[string]any {
	return map[string]any{"fingerprint": i.Expected}
}

func (i *FingerprintIdentifier) Describe() string {
	return "transmitter fingerprint is " + i.Expected
}

func (i *FingerprintIdentifier) Matches(f dot11.Frame) (bool, bool) {
	switch v := f.(type) {
	case *dot11.Beacon:
		return v.TransmitterFingerprint == i.Expected, true
	case *dot11.Deauthentication:
		return v.TransmitterFingerprint == i.Expected, true
	case *dot11.ProbeResponse:
		return v.TransmitterFingerprint == i.Expected, true
	}
	return false, false
}

type SSIDIdentifier struct {
	base
	ssids []string
	set   map[string]struct{}
}

func NewSSIDIdentifier(ssids []string, identity *Identity) *SSIDIdentifier {
	set := make(map[string]struct{}, len(ssids))
	for _, s := range ssids {
		set[s] = struct{}{}
	}
	return &SSIDIdentifier{base: base{identity: identity}, ssids: append([]string(nil), ssids...), set: set}
}

func (*SSIDIdentifier) Type() IdentifierType { return TypeSSID }

func (i *SSIDIdentifier) SSIDs() []string { return append([]string(nil), i.ssids...) }

func (i *SSIDIdentifier) Configuration() map[string]any {
	out := make([]any, len(i.ssids))
	for n, s := range i.ssids {
		out[n] = s
	}
	return map[string]any{"ssids": out}
}

func (i *SSIDIdentifier) Describe() string {
	return fmt.Sprintf("SSID is one of %q", i.ssids)
}

func (i *SSIDIdentifier) Matches(f dot11.Frame) (bool, bool) {
	switch f.(type) {
	case *dot11.Beacon, *dot11.ProbeRequest, *dot11.ProbeResponse, *dot11.AssociationRequest:
	default:
		return false, false
	}
	ssid, _ := dot11.SSIDOf(f)
	if ssid == nil {
		return false, true
	}
	_, hit := i.set[*ssid]
	return hit, true
}

type SignalStrengthIdentifier struct {
	base
	From int
	To   int
}

// NewSignalStrengthIdentifier accepts an inclusive dBm range within [-100, 0].
func NewSignalStrengthIdentifier(from, to int, identity *Identity) (*SignalStrengthIdentifier, error) {
	if from > to {
		return nil, fmt.Errorf("signal range from %d is above to %d", from, to)
	}
	if from < MinSignal || to > MaxSignal {
		return nil, fmt.Errorf("signal range [%d, %d] outside [%d, %d] dBm", from, to, MinSignal, MaxSignal)
	}
	return &SignalStrengthIdentifier{base: base{identity: identity}, From: from, To: to}, nil
}

func (*SignalStrengthIdentifier) Type() IdentifierType { return TypeSignalStrength }

func (i *SignalStrengthIdentifier) Configuration() map[string]any {
	return map[string]any{"from": i.From, "to": i.To}
}

func (i *SignalStrengthIdentifier) Describe() string {
	return fmt.Sprintf("signal strength between %d and %d dBm", i.From, i.To)
}

func (i *SignalStrengthIdentifier) Matches(f dot11.Frame) (bool, bool) {
	switch f.(type) {
	case *dot11.Beacon, *dot11.ProbeResponse, *dot11.Deauthentication:
		s := f.Meta().AntennaSignal
		return s >= i.From && s <= i.To, true
	}
	return false, false
}

// AnyPwnagotchi as the expected identity matches every advertisement.
const AnyPwnagotchi = "*"

type PwnagotchiIdentityIdentifier struct {
	base
	Expected string
}

func NewPwnagotchiIdentityIdentifier(expected string, identity *Identity) *PwnagotchiIdentityIdentifier {
	return &PwnagotchiIdentityIdentifier{base: base{identity: identity}, Expected: expected}
}

func (*PwnagotchiIdentityIdentifier) Type() IdentifierType { return TypePwnagotchiIdentity }

func (i *PwnagotchiIdentityIdentifier) Configuration() map[string]any {
	return map[string]any{"identity": i.Expected}
}

func (i *PwnagotchiIdentityIdentifier) Describe() string {
	if i.Expected == AnyPwnagotchi {
		return "any pwnagotchi advertisement"
	}
	return "pwnagotchi identity is " + i.Expected
}

func (i *PwnagotchiIdentityIdentifier) Matches(f dot11.Frame) (bool, bool) {
	b, ok := f.(*dot11.Beacon)
	if !ok {
		return false, false
	}
	adv, ok := b.Advertisement()
	if !ok {
		return false, true
	}
	return i.Expected == AnyPwnagotchi || adv.Identity == i.Expected, true
}
