package lode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/sextant/metrics"
	"github.com/pithecene-io/sextant/result"
)

// LodeClient is the Lode-backed Client.
type LodeClient struct {
	dataset      lode.Dataset
	config       Config
	storeFactory lode.StoreFactory

	mu        sync.Mutex // serializes dataset writes
	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewLodeClient creates a client with filesystem storage rooted at root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := newDataset(cfg.dataset(), factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.dataset())
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{dataset: ds, config: cfg, storeFactory: factory}
}

func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WriteSnapshot implements Client.
func (c *LodeClient) WriteSnapshot(ctx context.Context, rec *SnapshotRecord) error {
	m, err := toSnapshotRecordMap(rec)
	if err != nil {
		return err
	}
	return c.write(ctx, m)
}

// WriteMetrics implements Client.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	return c.write(ctx, toMetricsRecordMap(snap, c.config, completedAt))
}

func (c *LodeClient) write(ctx context.Context, record map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(fmt.Sprint(record["record_kind"])))
	}
	return nil
}

// WriteResultFile stores the full result as JSON next to the session's
// partitions, bypassing the dataset manifest.
func (c *LodeClient) WriteResultFile(ctx context.Context, name string, r *result.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.config.dataset())
	}
	path := c.FilePath(name)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

func (c *LodeClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

func (c *LodeClient) partitionPath(kind string) string {
	return fmt.Sprintf("datasets/%s/partitions/session=%s/day=%s/session_id=%s/record_kind=%s",
		c.config.dataset(), c.config.Session, c.config.Day, c.config.SessionID, kind)
}

// FilePath is the store key of a session file:
// datasets/<dataset>/partitions/session=<s>/day=<d>/session_id=<id>/files/<name>.
func (c *LodeClient) FilePath(name string) string {
	return fmt.Sprintf("datasets/%s/partitions/session=%s/day=%s/session_id=%s/files/%s",
		c.config.dataset(), c.config.Session, c.config.Day, c.config.SessionID, name)
}

// Dataset returns the underlying dataset for read-back.
func (c *LodeClient) Dataset() lode.Dataset {
	return c.dataset
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	return nil
}

var _ Client = (*LodeClient)(nil)
