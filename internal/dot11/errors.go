package dot11

import "errors"

var (
	// ErrMalformedFrame marks structural decode failures: out-of-bounds fields,
	// missing mandatory elements, invalid status or reason codes.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownFrameType marks subtypes without a registered decoder.
	ErrUnknownFrameType = errors.New("unknown frame type")
)

// DecodeError describes why a single frame was rejected. It unwraps to one of
// the sentinel errors above.
type DecodeError struct {
	Type   FrameType
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode " + e.Type.String() + ": " + e.Err.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func malformed(t FrameType, reason string) error {
	return &DecodeError{Type: t, Reason: reason, Err: ErrMalformedFrame}
}
