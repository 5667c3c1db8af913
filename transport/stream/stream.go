// Package stream implements the push-stream transport: a TCP connection
// carrying length-prefixed JSON packets.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pithecene-io/sextant/ipc"
	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/pipeline"
)

// DefaultReadTimeout bounds each socket read so cancellation is observed promptly.
const DefaultReadTimeout = 500 * time.Millisecond

// DefaultDialTimeout bounds Open.
const DefaultDialTimeout = 5 * time.Second

// Config configures a stream producer.
type Config struct {
	Host string
	Port int
	// ReadTimeout bounds a single read. Zero means DefaultReadTimeout.
	ReadTimeout time.Duration
	// DialTimeout bounds Open. Zero means DefaultDialTimeout.
	DialTimeout time.Duration
	Logger      *log.Logger
}

// Producer reads packets from a TCP stream.
type Producer struct {
	cfg    Config
	logger *log.Logger

	mu   sync.Mutex
	conn net.Conn
}

// New creates a stream producer.
func New(cfg Config) (*Producer, error) {
	if cfg.Host == "" {
		return nil, errors.New("stream host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid stream port %d", cfg.Port)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Producer{cfg: cfg, logger: logger}, nil
}

// Addr returns host:port.
func (p *Producer) Addr() string {
	return net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
}

// Open dials the stream.
func (p *Producer) Open(ctx context.Context) error {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr())
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.Addr(), err)
	}
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	p.logger.Info("stream connected", map[string]any{"addr": p.Addr()})
	return nil
}

// Run feeds every frame to sink until the peer closes the connection
// (returns nil) or ctx is canceled.
func (p *Producer) Run(ctx context.Context, sink pipeline.Sink) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return errors.New("stream not open")
	}

	dec := ipc.NewFrameDecoder(&deadlineReader{ctx: ctx, conn: conn, timeout: p.cfg.ReadTimeout})
	for {
		payload, err := dec.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				p.logger.Info("stream closed by peer", nil)
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if _, err := sink.FeedAny(ctx, payload); err != nil {
			return err
		}
	}
}

// Close closes the connection. Safe to call when not open.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// deadlineReader retries reads that time out until ctx is canceled, so a
// frame split across a timeout is not lost.
type deadlineReader struct {
	ctx     context.Context
	conn    net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(b []byte) (int, error) {
	for {
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
		n, err := r.conn.Read(b)
		if n > 0 {
			return n, nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}
		return n, err
	}
}
