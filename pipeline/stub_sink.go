package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/types"
)

// FedPayload is one payload accepted by a StubSink.
type FedPayload struct {
	Kind    types.PacketType
	Payload []byte
}

// StubSink is a test Sink that records what transports feed it.
// Payloads of unknown kind are reported as not handled, like the Engine;
// payloads are not decoded.
type StubSink struct {
	mu sync.Mutex

	// Fed stores every handled payload in arrival order.
	Fed []FedPayload
	// Pushed stores every typed packet in arrival order.
	Pushed []protocol.Packet
	// Unhandled counts payloads of unknown kind.
	Unhandled int

	// ErrorOnFeed, if non-nil, is returned by Feed and FeedAny.
	ErrorOnFeed error

	notify chan struct{}
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{notify: make(chan struct{}, 1)}
}

func (s *StubSink) Feed(_ context.Context, payload []byte, kind types.PacketType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrorOnFeed != nil {
		return false, s.ErrorOnFeed
	}
	if !kind.IsSupported() {
		s.Unhandled++
		return false, nil
	}
	s.Fed = append(s.Fed, FedPayload{Kind: kind, Payload: append([]byte(nil), payload...)})
	signal(s.notify)
	return true, nil
}

func (s *StubSink) FeedAny(ctx context.Context, payload []byte) (bool, error) {
	kind, err := protocol.PeekKind(payload)
	if err != nil {
		kind = types.PacketUnknown
	}
	return s.Feed(ctx, payload, kind)
}

func (s *StubSink) Push(_ context.Context, p protocol.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pushed = append(s.Pushed, p)
	signal(s.notify)
	return nil
}

// Count returns the number of fed payloads plus pushed packets.
func (s *StubSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Fed) + len(s.Pushed)
}

// Snapshot returns a copy of the fed payloads.
func (s *StubSink) Snapshot() []FedPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FedPayload(nil), s.Fed...)
}

// PushedSnapshot returns a copy of the pushed packets.
func (s *StubSink) PushedSnapshot() []protocol.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Packet(nil), s.Pushed...)
}

// WaitFor blocks until at least n payloads or packets arrived, or timeout.
func (s *StubSink) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if s.Count() >= n {
			return true
		}
		select {
		case <-s.notify:
		case <-deadline:
			return s.Count() >= n
		}
	}
}
