package lode

import (
	"context"
	"time"

	"github.com/pithecene-io/sextant/metrics"
	"github.com/pithecene-io/sextant/result"
)

// InstrumentedClient wraps a Client and counts archive writes on the
// collector.
type InstrumentedClient struct {
	inner     Client
	collector *metrics.Collector
}

// NewInstrumentedClient wraps inner with metrics instrumentation.
func NewInstrumentedClient(inner Client, collector *metrics.Collector) *InstrumentedClient {
	return &InstrumentedClient{inner: inner, collector: collector}
}

func (c *InstrumentedClient) record(err error) error {
	if err != nil {
		c.collector.IncArchiveWriteFailure()
	} else {
		c.collector.IncArchiveWriteSuccess()
	}
	return err
}

// WriteSnapshot delegates and records success or failure.
func (c *InstrumentedClient) WriteSnapshot(ctx context.Context, rec *SnapshotRecord) error {
	return c.record(c.inner.WriteSnapshot(ctx, rec))
}

// WriteMetrics delegates and records success or failure.
func (c *InstrumentedClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	return c.record(c.inner.WriteMetrics(ctx, snap, completedAt))
}

// WriteResultFile delegates when the inner client stores result files.
func (c *InstrumentedClient) WriteResultFile(ctx context.Context, name string, r *result.Result) error {
	w, ok := c.inner.(ResultFileWriter)
	if !ok {
		return nil
	}
	return c.record(w.WriteResultFile(ctx, name, r))
}

// Close delegates to the inner client.
func (c *InstrumentedClient) Close() error {
	return c.inner.Close()
}

var _ Client = (*InstrumentedClient)(nil)
