package stream

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/pithecene-io/sextant/ipc"
	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/types"
)

// serve accepts one connection and hands it to fn.
func serve(t *testing.T, fn func(conn net.Conn)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fn(conn)
	}()

	h, p, _ := net.SplitHostPort(ln.Addr().String())
	n, _ := strconv.Atoi(p)
	return h, n
}

func TestProducer_FeedsFramesUntilPeerCloses(t *testing.T) {
	host, port := serve(t, func(conn net.Conn) {
		defer conn.Close()
		enc := ipc.NewFrameEncoder(conn)
		_ = enc.WriteFrame([]byte(`{"eType":"Log","sMessage":"one"}`))
		// A frame split across reads must survive the read timeout.
		frame := ipc.EncodeFrame([]byte(`{"eType":"LiveResult","oResults":{}}`))
		_, _ = conn.Write(frame[:6])
		time.Sleep(80 * time.Millisecond)
		_, _ = conn.Write(frame[6:])
		_ = enc.WriteFrame([]byte(`{"eType":"FutureKind"}`))
	})

	p, err := New(Config{Host: host, Port: port, ReadTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Open(t.Context()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	sink := pipeline.NewStubSink()
	if err := p.Run(t.Context(), sink); err != nil {
		t.Fatalf("Run = %v, want nil on peer close", err)
	}

	fed := sink.Snapshot()
	if len(fed) != 2 {
		t.Fatalf("fed %d payloads, want 2", len(fed))
	}
	if fed[0].Kind != types.PacketLog || fed[1].Kind != types.PacketLiveResult {
		t.Errorf("kinds = %v, %v", fed[0].Kind, fed[1].Kind)
	}
	if sink.Unhandled != 1 {
		t.Errorf("unhandled = %d, want 1", sink.Unhandled)
	}
}

func TestProducer_CancelUnblocksIdleRead(t *testing.T) {
	release := make(chan struct{})
	host, port := serve(t, func(conn net.Conn) {
		defer conn.Close()
		<-release
	})
	defer close(release)

	p, err := New(Config{Host: host, Port: port, ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Open(t.Context()); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, pipeline.NewStubSink()) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not observe cancellation within the read timeout bound")
	}
}

func TestProducer_SinkErrorStopsRun(t *testing.T) {
	host, port := serve(t, func(conn net.Conn) {
		defer conn.Close()
		_ = ipc.NewFrameEncoder(conn).WriteFrame([]byte(`{"eType":"Debug"}`))
		time.Sleep(200 * time.Millisecond)
	})

	p, _ := New(Config{Host: host, Port: port})
	if err := p.Open(t.Context()); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	sink := pipeline.NewStubSink()
	sink.ErrorOnFeed = errors.New("decode failed")
	if err := p.Run(t.Context(), sink); !errors.Is(err, sink.ErrorOnFeed) {
		t.Errorf("Run = %v, want sink error", err)
	}
}

func TestProducer_OpenRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	_ = ln.Close()

	p, _ := New(Config{Host: "127.0.0.1", Port: port, DialTimeout: time.Second})
	if err := p.Open(t.Context()); err == nil {
		t.Error("expected dial error")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Port: 1}); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := New(Config{Host: "localhost", Port: 70000}); err == nil {
		t.Error("expected error for bad port")
	}
}
