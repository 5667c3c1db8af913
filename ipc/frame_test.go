package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pithecene-io/sextant/types"
)

func TestFrameDecoder_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	payloads := []string{`{"eType":"Log","sMessage":"a"}`, ``, `{"eType":"Debug"}`}
	for _, p := range payloads {
		if err := enc.WriteFrame([]byte(p)); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	dec := NewFrameDecoder(&buf)
	for i, want := range payloads {
		got, err := dec.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if string(got) != want {
			t.Errorf("frame %d = %q, want %q", i, got, want)
		}
	}
	if _, err := dec.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestFrameDecoder_PartialPrefix(t *testing.T) {
	dec := NewFrameDecoder(bytes.NewReader([]byte{0, 0}))
	_, err := dec.ReadFrame()
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorPartial {
		t.Fatalf("expected partial frame error, got %v", err)
	}
	if !IsFatalFrameError(err) {
		t.Error("partial prefix should be fatal")
	}
}

func TestFrameDecoder_PartialPayload(t *testing.T) {
	frame := EncodeFrame([]byte("hello world"))
	dec := NewFrameDecoder(bytes.NewReader(frame[:len(frame)-3]))
	_, err := dec.ReadFrame()
	if !IsFatalFrameError(err) {
		t.Fatalf("expected fatal frame error, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected wrapped io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestFrameDecoder_TooLarge(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], MaxPayloadSize+1)
	_, err := NewFrameDecoder(bytes.NewReader(prefix[:])).ReadFrame()
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorTooLarge {
		t.Fatalf("expected too-large error, got %v", err)
	}
}

func TestFrameEncoder_RejectsOversized(t *testing.T) {
	err := NewFrameEncoder(io.Discard).WriteFrame(make([]byte, MaxPayloadSize+1))
	if !IsFatalFrameError(err) {
		t.Fatalf("expected too-large error, got %v", err)
	}
}

func TestRecord_EncodeDecode(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	rec := NewRecord(types.PacketBacktestResult, []byte(`{"dProgress":0.5}`), at)

	data, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	got, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if got.PacketType() != types.PacketBacktestResult {
		t.Errorf("kind = %v", got.PacketType())
	}
	if !bytes.Equal(got.Payload, rec.Payload) {
		t.Errorf("payload = %q", got.Payload)
	}
	if !got.Time().Equal(at) {
		t.Errorf("time = %v, want %v", got.Time(), at)
	}
}

func TestDecodeRecord_Garbage(t *testing.T) {
	_, err := DecodeRecord([]byte{0xc1})
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
	if fe.IsFatal() {
		t.Error("decode errors are not fatal to the stream")
	}
}
