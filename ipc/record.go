package ipc

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/sextant/types"
)

// Record is one fed packet as captured by the recorder.
type Record struct {
	// Kind is the declared packet kind name.
	Kind string `msgpack:"kind"`
	// Payload is the raw packet payload as received.
	Payload []byte `msgpack:"payload"`
	// ReceivedAt is the arrival time in unix nanoseconds.
	ReceivedAt int64 `msgpack:"received_at"`
}

// NewRecord captures payload with the current time.
func NewRecord(kind types.PacketType, payload []byte, at time.Time) *Record {
	return &Record{Kind: kind.String(), Payload: payload, ReceivedAt: at.UnixNano()}
}

// PacketType returns the declared kind.
func (r *Record) PacketType() types.PacketType {
	return types.ParsePacketType(r.Kind)
}

// Time returns ReceivedAt as a time.
func (r *Record) Time() time.Time {
	return time.Unix(0, r.ReceivedAt)
}

// EncodeRecord serializes a record as msgpack.
func EncodeRecord(r *Record) ([]byte, error) {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to encode record", Err: err}
	}
	return data, nil
}

// DecodeRecord decodes a msgpack record payload.
func DecodeRecord(payload []byte) (*Record, error) {
	var r Record
	if err := msgpack.Unmarshal(payload, &r); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode record",
			Err:  err,
		}
	}
	return &r, nil
}
