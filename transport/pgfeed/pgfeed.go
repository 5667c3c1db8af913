// Package pgfeed implements the database change-feed transport over
// PostgreSQL LISTEN/NOTIFY. Every notification payload on the configured
// channel is one JSON packet.
package pgfeed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/pipeline"
)

// DefaultChannel is the default notification channel.
const DefaultChannel = "sextant_packets"

// Listener reconnect bounds.
const (
	minReconnect = 5 * time.Second
	maxReconnect = time.Minute
)

// Config configures a LISTEN/NOTIFY producer.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
	// SSLMode is passed through to the driver (default: disable).
	SSLMode string
	// Channel is the LISTEN channel (default: sextant_packets).
	Channel string
	Logger  *log.Logger
}

// ConnString returns the libpq key/value connection string.
func (c Config) ConnString() string {
	var b strings.Builder
	kv := func(k, v string) {
		if v == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quoteValue(v))
	}
	kv("host", c.Host)
	if c.Port > 0 {
		kv("port", fmt.Sprint(c.Port))
	}
	kv("user", c.Username)
	kv("password", c.Password)
	kv("dbname", c.Database)
	kv("sslmode", c.SSLMode)
	return b.String()
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// notifier is the part of *pq.Listener the producer reads from.
type notifier interface {
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// Producer receives packets from PostgreSQL notifications.
type Producer struct {
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	listener notifier
}

// New creates a LISTEN/NOTIFY producer.
func New(cfg Config) (*Producer, error) {
	if cfg.Host == "" {
		return nil, errors.New("postgres feed host is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid postgres feed port %d", cfg.Port)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Producer{cfg: cfg, logger: logger}, nil
}

// Open verifies the server and starts listening on the channel.
func (p *Producer) Open(ctx context.Context) error {
	connStr := p.cfg.ConnString()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	err = db.PingContext(ctx)
	_ = db.Close()
	if err != nil {
		return fmt.Errorf("postgres %s: %w", p.cfg.Host, err)
	}

	listener := pq.NewListener(connStr, minReconnect, maxReconnect, p.onEvent)
	if err := listener.Listen(p.cfg.Channel); err != nil {
		_ = listener.Close()
		return fmt.Errorf("listen %s: %w", p.cfg.Channel, err)
	}
	p.setListener(listener)
	p.logger.Info("postgres feed listening", map[string]any{
		"host":    p.cfg.Host,
		"channel": p.cfg.Channel,
	})
	return nil
}

func (p *Producer) setListener(l notifier) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

func (p *Producer) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected:
		p.logger.Warn("postgres feed disconnected", map[string]any{"error": fmt.Sprint(err)})
	case pq.ListenerEventReconnected:
		p.logger.Info("postgres feed reconnected", nil)
	case pq.ListenerEventConnectionAttemptFailed:
		p.logger.Warn("postgres feed reconnect failed", map[string]any{"error": fmt.Sprint(err)})
	}
}

// Run feeds notifications until ctx is canceled or the listener closes.
func (p *Producer) Run(ctx context.Context, sink pipeline.Sink) error {
	p.mu.Lock()
	listener := p.listener
	p.mu.Unlock()
	if listener == nil {
		return errors.New("postgres feed not open")
	}

	notifications := listener.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			// nil follows a reconnect; notifications in the gap are lost.
			if n == nil {
				continue
			}
			if n.Channel != p.cfg.Channel {
				continue
			}
			if _, err := sink.FeedAny(ctx, []byte(n.Extra)); err != nil {
				return err
			}
		}
	}
}

// Close stops listening.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	err := p.listener.Close()
	p.listener = nil
	return err
}
