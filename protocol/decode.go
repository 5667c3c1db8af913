package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pithecene-io/sextant/types"
)

// ErrMissingKind is returned by PeekKind when a payload has no eType.
var ErrMissingKind = errors.New("packet has no eType")

// DecodeError is a malformed payload for a known packet kind.
type DecodeError struct {
	Kind types.PacketType
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s packet: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// PeekKind reads the eType discriminant of payload without decoding the
// body. Unrecognized discriminants yield types.PacketUnknown and no error.
func PeekKind(payload []byte) (types.PacketType, error) {
	var peek struct {
		Type json.RawMessage `json:"eType"`
	}
	if err := json.Unmarshal(payload, &peek); err != nil {
		return types.PacketUnknown, &DecodeError{Kind: types.PacketUnknown, Err: err}
	}
	if len(peek.Type) == 0 || bytes.Equal(peek.Type, []byte("null")) {
		return types.PacketUnknown, ErrMissingKind
	}
	var kind types.PacketType
	if err := kind.UnmarshalJSON(peek.Type); err != nil {
		return types.PacketUnknown, &DecodeError{Kind: types.PacketUnknown, Err: err}
	}
	return kind, nil
}

// Decode decodes payload as a packet of the declared kind.
//
// Kinds this client does not dispatch return ok=false and no error, so
// new server-side kinds never break decoding. A malformed payload for a
// supported kind returns a *DecodeError. The declared kind is authoritative
// over any eType in the payload.
func Decode(payload []byte, kind types.PacketType) (p Packet, ok bool, err error) {
	if !kind.IsSupported() {
		return nil, false, nil
	}
	var target Packet
	switch kind {
	case types.PacketAlgorithmStatus:
		target = &AlgorithmStatusPacket{}
	case types.PacketLiveNode, types.PacketAlgorithmNode:
		target = &NodePacket{}
	case types.PacketLiveResult:
		target = &LiveResultPacket{}
	case types.PacketBacktestResult:
		target = &BacktestResultPacket{}
	case types.PacketOrderEvent:
		target = &OrderEventPacket{}
	case types.PacketLog, types.PacketDebug, types.PacketHandledError:
		target = &LogPacket{}
	default:
		return nil, false, nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return nil, false, &DecodeError{Kind: kind, Err: err}
	}
	setKind(target, kind)
	return target, true, nil
}

// DecodeAny peeks at the kind of payload and decodes it.
func DecodeAny(payload []byte) (Packet, bool, error) {
	kind, err := PeekKind(payload)
	if err != nil {
		return nil, false, err
	}
	return Decode(payload, kind)
}

// Encode serializes p to its wire form.
func Encode(p Packet) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s packet: %w", p.Kind(), err)
	}
	return data, nil
}

func setKind(p Packet, kind types.PacketType) {
	switch v := p.(type) {
	case *AlgorithmStatusPacket:
		v.Type = kind
	case *NodePacket:
		v.Type = kind
	case *LiveResultPacket:
		v.Type = kind
		v.Result()
	case *BacktestResultPacket:
		v.Type = kind
		v.Result()
	case *OrderEventPacket:
		v.Type = kind
	case *LogPacket:
		v.Type = kind
	}
}
