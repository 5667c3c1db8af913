// Package ws implements the push-stream transport over WebSocket: one JSON
// packet per text or binary message.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/pipeline"
)

const (
	// DefaultPongWait is how long the connection may stay silent, pongs included.
	DefaultPongWait = 60 * time.Second
	writeWait       = 2 * time.Second
	maxMessageSize  = 16 * 1024 * 1024
)

// Config configures a WebSocket producer.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Header is sent with the handshake.
	Header http.Header
	// PongWait bounds silence on the connection. Zero means DefaultPongWait.
	PongWait time.Duration
	Logger   *log.Logger
}

// Producer reads packets from a WebSocket connection.
type Producer struct {
	cfg    Config
	logger *log.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a WebSocket producer.
func New(cfg Config) (*Producer, error) {
	if cfg.URL == "" {
		return nil, errors.New("websocket url is required")
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = DefaultPongWait
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Producer{cfg: cfg, logger: logger}, nil
}

// Open performs the WebSocket handshake.
func (p *Producer) Open(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, p.cfg.URL, p.cfg.Header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", p.cfg.URL, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", p.cfg.URL, err)
	}
	conn.SetReadLimit(maxMessageSize)

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	p.logger.Info("websocket connected", map[string]any{"url": p.cfg.URL})
	return nil
}

// Run feeds every message to sink until the peer closes normally (returns
// nil) or ctx is canceled.
func (p *Producer) Run(ctx context.Context, sink pipeline.Sink) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return errors.New("websocket not open")
	}

	// A timed-out read leaves the connection unusable, so cancellation
	// closes the socket instead of polling with deadlines.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go p.ping(conn, pingDone)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Info("websocket closed by peer", nil)
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))
		if _, err := sink.FeedAny(ctx, message); err != nil {
			return err
		}
	}
}

func (p *Producer) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(p.cfg.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Close sends a close frame and closes the connection.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	conn := p.conn
	p.conn = nil
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return conn.Close()
}
