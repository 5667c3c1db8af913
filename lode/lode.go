// Package lode archives result snapshots and session metrics to a Lode
// dataset on the local filesystem or S3.
//
// Records are JSONL, Hive-partitioned by session/day/session_id/record_kind.
package lode

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/sextant/metrics"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "sextant"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"session", "day", "session_id", "record_kind"}

// DeriveDay computes the partition day (YYYY-MM-DD, UTC).
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Config holds the partition values of one session.
type Config struct {
	// Dataset is the Lode dataset ID (default: sextant).
	Dataset string
	// Session is the session name.
	Session string
	// SessionID is the unique session instance ID.
	SessionID string
	// Day is derived from the session start time.
	Day string
}

// Validate checks required partition values.
func (c *Config) Validate() error {
	if c.Session == "" {
		return errors.New("archive session is required")
	}
	if c.SessionID == "" {
		return errors.New("archive session id is required")
	}
	if c.Day == "" {
		return errors.New("archive day is required")
	}
	return nil
}

func (c Config) dataset() string {
	if c.Dataset == "" {
		return DefaultDataset
	}
	return c.Dataset
}

// Client abstracts the archive.
type Client interface {
	// WriteSnapshot appends one result snapshot record.
	WriteSnapshot(ctx context.Context, rec *SnapshotRecord) error
	// WriteMetrics appends one metrics record.
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error
	// Close releases client resources.
	Close() error
}

// StubClient records writes in memory for tests.
type StubClient struct {
	mu        sync.Mutex
	Snapshots []*SnapshotRecord
	Metrics   []metrics.Snapshot
	Closed    bool
	// Err, if set, fails every write.
	Err error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

func (c *StubClient) WriteSnapshot(_ context.Context, rec *SnapshotRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Snapshots = append(c.Snapshots, rec)
	return nil
}

func (c *StubClient) WriteMetrics(_ context.Context, snap metrics.Snapshot, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Metrics = append(c.Metrics, snap)
	return nil
}

func (c *StubClient) Close() error {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
	return nil
}

// SnapshotCount returns the number of snapshots written.
func (c *StubClient) SnapshotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Snapshots)
}

var _ Client = (*StubClient)(nil)
