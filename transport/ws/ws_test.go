package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/types"
)

func newServer(t *testing.T, fn func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestProducer_FeedsMessages(t *testing.T) {
	url := newServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eType":"AlgorithmStatus","eStatus":"Running"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"eType":"OrderEvent","oOrderEvent":{"OrderId":1}}`))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		time.Sleep(50 * time.Millisecond)
	})

	p, err := New(Config{URL: url})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Open(t.Context()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	sink := pipeline.NewStubSink()
	if err := p.Run(t.Context(), sink); err != nil {
		t.Fatalf("Run = %v, want nil on normal close", err)
	}
	fed := sink.Snapshot()
	if len(fed) != 2 || fed[0].Kind != types.PacketAlgorithmStatus || fed[1].Kind != types.PacketOrderEvent {
		t.Errorf("fed = %+v", fed)
	}
}

func TestProducer_CancelClosesConnection(t *testing.T) {
	release := make(chan struct{})
	url := newServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer close(release)

	p, _ := New(Config{URL: url})
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
		t.Fatal("Run did not return after cancellation")
	}
}

func TestProducer_OpenFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p, _ := New(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	if err := p.Open(t.Context()); err == nil {
		t.Error("expected handshake error")
	}
}
