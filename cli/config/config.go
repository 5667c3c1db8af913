// Package config loads sextant.yaml. All values are optional defaults for
// sextant watch; CLI flags always override them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/sextant/policy"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "sextant.yaml"

// Transport kinds accepted by transport.kind.
const (
	TransportStream    = "stream"
	TransportWS        = "ws"
	TransportRedis     = "redis"
	TransportPostgres  = "postgres"
	TransportSynthetic = "synthetic"
	TransportReplay    = "replay"
)

// Config represents a sextant.yaml file.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Transport TransportConfig `yaml:"transport"`
	Queue     QueueConfig     `yaml:"queue"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	Log       LogConfig       `yaml:"log"`
}

// SessionConfig names the session.
type SessionConfig struct {
	Name                string `yaml:"name"`
	CloseAfterCompleted *bool  `yaml:"close_after_completed,omitempty"`
	// Record, if set, is a path the recorder tap writes to.
	Record string `yaml:"record,omitempty"`
}

// TransportConfig selects and configures the producer.
// Fields irrelevant to the chosen kind are ignored.
type TransportConfig struct {
	Kind string `yaml:"kind"`

	// stream, redis, postgres
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// postgres database name and sslmode
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	// redis logical database
	DB int `yaml:"db"`
	// postgres LISTEN channel
	Channel string `yaml:"channel"`
	// redis stream key and the entry id to read after
	Stream  string `yaml:"stream"`
	StartID string `yaml:"start_id"`
	// ws endpoint
	URL string `yaml:"url"`
	// replay file
	Path string `yaml:"path"`

	// stream read timeout, ws pong wait, redis XREAD block
	ReadTimeout Duration `yaml:"read_timeout,omitempty"`
	// replay pacing; 0 replays as fast as possible
	Speed float64 `yaml:"speed"`

	// synthetic generator
	Interval   Duration `yaml:"interval,omitempty"`
	Steps      int      `yaml:"steps"`
	Seed       int64    `yaml:"seed"`
	Live       bool     `yaml:"live"`
	TradeEvery int      `yaml:"trade_every"`
	// Encoded routes synthetic packets through the JSON wire path. Implied
	// by session.record.
	Encoded bool `yaml:"encoded"`
}

// QueueConfig selects the queue overflow policy.
type QueueConfig struct {
	Policy   string `yaml:"policy"`
	Capacity int    `yaml:"capacity"`
}

// ArchiveConfig configures Lode archival. An empty Path disables it.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig configures completion notifications. An empty Type
// disables them.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
	// File receives logs instead of stderr. The live view discards logs
	// unless File is set.
	File string `yaml:"file"`
}

// Validate checks enumerated values. Required values are checked after
// flags are merged, by the command.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Transport.Kind) {
	case "", TransportStream, TransportWS, TransportRedis, TransportPostgres, TransportSynthetic, TransportReplay:
	default:
		errs = append(errs, fmt.Errorf("unknown transport kind %q", c.Transport.Kind))
	}
	if _, err := policy.ParseMode(c.Queue.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Queue.Capacity < 0 {
		errs = append(errs, policy.ErrInvalidCapacity)
	}
	switch c.Archive.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("unknown archive backend %q (must be fs or s3)", c.Archive.Backend))
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter retries must be >= 0, got %d", *c.Adapter.Retries))
	}
	if c.Transport.Speed < 0 {
		errs = append(errs, fmt.Errorf("transport speed must be >= 0, got %v", c.Transport.Speed))
	}
	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML string parsing (e.g. "500ms", "5s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}
