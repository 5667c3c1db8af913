// Package redisfeed implements the database change-feed transport over
// Redis Streams. Each stream entry carries a "payload" field holding one
// JSON packet and an optional "type" field (name or ordinal).
package redisfeed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/types"
)

// DefaultStream is the default stream key.
const DefaultStream = "sextant:packets"

// DefaultBlock bounds each XREAD so cancellation is observed promptly.
const DefaultBlock = 500 * time.Millisecond

// DefaultCount is the maximum number of entries per XREAD.
const DefaultCount = 256

// Stream entry field names.
const (
	FieldPayload = "payload"
	FieldType    = "type"
)

// Config configures a Redis Streams producer.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
	// Stream is the stream key (default: sextant:packets).
	Stream string
	// StartID is the entry id to read after. Empty means "$" (new entries only).
	StartID string
	// Block bounds a single XREAD. Zero means DefaultBlock.
	Block time.Duration
	// Count caps entries per XREAD. Zero means DefaultCount.
	Count  int64
	Logger *log.Logger
}

// Producer tails a Redis stream.
type Producer struct {
	cfg    Config
	logger *log.Logger

	mu     sync.Mutex
	client *goredis.Client
	lastID string
}

// New creates a Redis Streams producer.
func New(cfg Config) (*Producer, error) {
	if cfg.Host == "" {
		return nil, errors.New("redis feed host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid redis feed port %d", cfg.Port)
	}
	if cfg.DB < 0 {
		return nil, fmt.Errorf("redis db must be >= 0, got %d", cfg.DB)
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.StartID == "" {
		cfg.StartID = "$"
	}
	if cfg.Block <= 0 {
		cfg.Block = DefaultBlock
	}
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Producer{cfg: cfg, logger: logger, lastID: cfg.StartID}, nil
}

// Addr returns host:port.
func (p *Producer) Addr() string {
	return net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
}

// Open connects and verifies the server with PING.
func (p *Producer) Open(ctx context.Context) error {
	client := goredis.NewClient(&goredis.Options{
		Addr:     p.Addr(),
		Username: p.cfg.Username,
		Password: p.cfg.Password,
		DB:       p.cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis %s: %w", p.Addr(), err)
	}
	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	p.logger.Info("redis feed connected", map[string]any{
		"addr":   p.Addr(),
		"stream": p.cfg.Stream,
	})
	return nil
}

// Run tails the stream until ctx is canceled.
func (p *Producer) Run(ctx context.Context, sink pipeline.Sink) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return errors.New("redis feed not open")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		streams, err := client.XRead(ctx, &goredis.XReadArgs{
			Streams: []string{p.cfg.Stream, p.lastID},
			Count:   p.cfg.Count,
			Block:   p.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("xread %s: %w", p.cfg.Stream, err)
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				p.lastID = msg.ID
				if err := p.feed(ctx, sink, msg); err != nil {
					return err
				}
			}
		}
	}
}

func (p *Producer) feed(ctx context.Context, sink pipeline.Sink, msg goredis.XMessage) error {
	payload, ok := msg.Values[FieldPayload].(string)
	if !ok {
		p.logger.Warn("stream entry without payload", map[string]any{"id": msg.ID})
		return nil
	}
	if raw, ok := msg.Values[FieldType].(string); ok && raw != "" {
		_, err := sink.Feed(ctx, []byte(payload), types.ParsePacketType(raw))
		return err
	}
	_, err := sink.FeedAny(ctx, []byte(payload))
	return err
}

// Close releases the client.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
