package bandits

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrMissingKey   = errors.New("missing configuration key")
	ErrWrongType    = errors.New("configuration value has wrong type")
	ErrInvalidValue = errors.New("invalid configuration value")
	ErrUnknownType  = errors.New("unknown identifier type")
)

type MappingErrorKind int

const (
	MissingKey MappingErrorKind = iota + 1
	WrongType
	InvalidValue
	UnknownType
)

func (k MappingErrorKind) sentinel() error {
	switch k {
	case MissingKey:
		return ErrMissingKey
	case WrongType:
		return ErrWrongType
	case InvalidValue:
		return ErrInvalidValue
	}
	return ErrUnknownType
}

// MappingError reports a stored identifier configuration that cannot be
// turned into an Identifier.
type MappingError struct {
	Type   string
	Key    string
	Kind   MappingErrorKind
	Detail string
}

func (e *MappingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bandit identifier %s", e.Type)
	if e.Key != "" {
		fmt.Fprintf(&b, " key %q", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.sentinel().Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *MappingError) Unwrap() error {
	return e.Kind.sentinel()
}

// NewIdentifier builds an identifier from its stored type tag and
// configuration. Keys and value types are checked before anything is allocated.
func NewIdentifier(typ string, cfg map[string]any, identity *Identity) (Identifier, error) {
	t := IdentifierType(strings.ToUpper(strings.TrimSpace(typ)))
	switch t {
	case TypeFingerprint:
		fp, err := stringKey(t, cfg, "fingerprint")
		if err != nil {
			return nil, err
		}
		if fp == "" {
			return nil, &MappingError{Type: string(t), Key: "fingerprint", Kind: InvalidValue, Detail: "empty fingerprint"}
		}
		return NewFingerprintIdentifier(fp, identity), nil
	case TypeSSID:
		ssids, err := stringListKey(t, cfg, "ssids")
		if err != nil {
			return nil, err
		}
		return NewSSIDIdentifier(ssids, identity), nil
	case TypeSignalStrength:
		from, err := intKey(t, cfg, "from")
		if err != nil {
			return nil, err
		}
		to, err := intKey(t, cfg, "to")
		if err != nil {
			return nil, err
		}
		id, err := NewSignalStrengthIdentifier(from, to, identity)
		if err != nil {
			return nil, &MappingError{Type: string(t), Kind: InvalidValue, Detail: err.Error()}
		}
		return id, nil
	case TypePwnagotchiIdentity:
		expected, err := stringKey(t, cfg, "identity")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(expected) == "" {
			return nil, &MappingError{Type: string(t), Key: "identity", Kind: InvalidValue, Detail: "empty identity"}
		}
		return NewPwnagotchiIdentityIdentifier(expected, identity), nil
	}
	return nil, &MappingError{Type: typ, Kind: UnknownType}
}

func lookup(t IdentifierType, cfg map[string]any, key string) (any, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return nil, &MappingError{Type: string(t), Key: key, Kind: MissingKey}
	}
	return v, nil
}

func stringKey(t IdentifierType, cfg map[string]any, key string) (string, error) {
	v, err := lookup(t, cfg, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &MappingError{Type: string(t), Key: key, Kind: WrongType, Detail: fmt.Sprintf("want string, got %T", v)}
	}
	return s, nil
}

func stringListKey(t IdentifierType, cfg map[string]any, key string) ([]string, error) {
	v, err := lookup(t, cfg, key)
	if err != nil {
		return nil, err
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, &MappingError{Type: string(t), Key: key, Kind: WrongType, Detail: fmt.Sprintf("list item %T is not a string", item)}
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, &MappingError{Type: string(t), Key: key, Kind: WrongType, Detail: fmt.Sprintf("want list of strings, got %T", v)}
}

// intKey accepts the integer shapes produced by YAML, JSON and database
// drivers. Fractional numbers are rejected.
func intKey(t IdentifierType, cfg map[string]any, key string) (int, error) {
	v, err := lookup(t, cfg, key)
	if err != nil {
		return 0, err
	}
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, &MappingError{Type: string(t), Key: key, Kind: WrongType, Detail: fmt.Sprintf("want integer, got %v", x)}
		}
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, outOfRange(t, key, v)
		}
		return int(x), nil
	default:
		return 0, &MappingError{Type: string(t), Key: key, Kind: WrongType, Detail: fmt.Sprintf("want integer, got %T", v)}
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, outOfRange(t, key, v)
	}
	return int(n), nil
}

func outOfRange(t IdentifierType, key string, v any) error {
	return &MappingError{Type: string(t), Key: key, Kind: InvalidValue, Detail: fmt.Sprintf("%v outside 32-bit integer range", v)}
}
