package lode

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pithecene-io/sextant/metrics"
	"github.com/pithecene-io/sextant/result"
)

// Record kinds; also the record_kind partition value.
const (
	RecordKindSnapshot = "snapshot"
	RecordKindMetrics  = "metrics"
)

// Snapshot reasons.
const (
	ReasonCompleted = "completed"
	ReasonTeardown  = "teardown"
	ReasonManual    = "manual"
)

// SnapshotRecord is the archived digest of a result at one point in time.
type SnapshotRecord struct {
	RecordKind string `json:"record_kind"`

	Session    string  `json:"session"`
	SessionID  string  `json:"session_id"`
	Day        string  `json:"day"`
	Reason     string  `json:"reason"`
	Progress   float64 `json:"progress"`
	CapturedAt string  `json:"captured_at"`

	Summary           result.Summary    `json:"summary"`
	RuntimeStatistics map[string]string `json:"runtime_statistics,omitempty"`
	// ProfitLoss is keyed by RFC3339 time.
	ProfitLoss map[string]string `json:"profit_loss,omitempty"`
	Orders     []OrderRecord     `json:"orders,omitempty"`
	// SeriesPoints is keyed "chart/series".
	SeriesPoints map[string]int `json:"series_points,omitempty"`
}

// OrderRecord is the archived state of one order.
type OrderRecord struct {
	ID        int    `json:"id"`
	Symbol    string `json:"symbol"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price"`
	Time      string `json:"time,omitempty"`
}

// NewSnapshotRecord digests rc.Result. It only reads the result.
func NewSnapshotRecord(cfg Config, rc result.Context, reason string, at time.Time) *SnapshotRecord {
	rec := &SnapshotRecord{
		RecordKind: RecordKindSnapshot,
		Session:    cfg.Session,
		SessionID:  cfg.SessionID,
		Day:        cfg.Day,
		Reason:     reason,
		Progress:   rc.Progress,
		CapturedAt: at.UTC().Format(time.RFC3339Nano),
	}
	r := rc.Result
	if r == nil {
		return rec
	}
	rec.Summary = r.Summarize()
	if len(r.RuntimeStatistics) > 0 {
		rec.RuntimeStatistics = make(map[string]string, len(r.RuntimeStatistics))
		for k, v := range r.RuntimeStatistics {
			rec.RuntimeStatistics[k] = v
		}
	}
	if len(r.ProfitLoss) > 0 {
		rec.ProfitLoss = make(map[string]string, len(r.ProfitLoss))
		for t, v := range r.ProfitLoss {
			rec.ProfitLoss[t.UTC().Format(time.RFC3339)] = v.String()
		}
	}
	for _, o := range r.Orders {
		if o == nil {
			continue
		}
		or := OrderRecord{
			ID:        o.ID,
			Symbol:    o.Symbol.String(),
			Type:      o.Type.String(),
			Status:    o.Status.String(),
			Direction: o.Direction.String(),
			Quantity:  o.Quantity.String(),
			Price:     o.Price.String(),
		}
		if !o.Time.IsZero() {
			or.Time = o.Time.UTC().Format(time.RFC3339)
		}
		rec.Orders = append(rec.Orders, or)
	}
	sort.Slice(rec.Orders, func(i, j int) bool { return rec.Orders[i].ID < rec.Orders[j].ID })
	for name, c := range r.Charts {
		if c == nil {
			continue
		}
		for sname, s := range c.Series {
			if s == nil {
				continue
			}
			if rec.SeriesPoints == nil {
				rec.SeriesPoints = make(map[string]int)
			}
			rec.SeriesPoints[name+"/"+sname] = len(s.Values)
		}
	}
	return rec
}

// toSnapshotRecordMap converts rec to the generic map form Lode's
// HiveLayout partitions on.
func toSnapshotRecordMap(rec *SnapshotRecord) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode snapshot record: %w", err)
	}
	return m, nil
}

// SnapshotFromRecord decodes a snapshot read back from the dataset.
func SnapshotFromRecord(m map[string]any) (*SnapshotRecord, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot record: %w", err)
	}
	var rec SnapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot record: %w", err)
	}
	return &rec, nil
}

// toMetricsRecordMap converts a metrics snapshot to its archive record.
func toMetricsRecordMap(snap metrics.Snapshot, cfg Config, completedAt time.Time) map[string]any {
	dropped := make(map[string]any, len(snap.DroppedByType))
	for k, v := range snap.DroppedByType {
		dropped[k] = v
	}
	return map[string]any{
		"record_kind":  RecordKindMetrics,
		"session":      cfg.Session,
		"session_id":   cfg.SessionID,
		"day":          cfg.Day,
		"completed_at": completedAt.UTC().Format(time.RFC3339Nano),

		"sessions_started_total":   snap.SessionsStarted,
		"sessions_closed_total":    snap.SessionsClosed,
		"sessions_failed_total":    snap.SessionsFailed,
		"sessions_completed_total": snap.SessionsCompleted,

		"packets_fed_total":        snap.PacketsFed,
		"packets_unhandled_total":  snap.PacketsUnhandled,
		"packets_dispatched_total": snap.PacketsDispatched,
		"decode_errors_total":      snap.DecodeErrors,
		"merges_total":             snap.Merges,

		"queue_pushed_total":  snap.QueuePushed,
		"queue_dropped_total": snap.QueueDropped,
		"queue_blocked_total": snap.QueueBlocked,
		"queue_high_water":    snap.QueueHighWater,
		"dropped_by_type":     dropped,

		"archive_write_success_total": snap.ArchiveWriteSuccess,
		"archive_write_failure_total": snap.ArchiveWriteFailure,
		"notify_success_total":        snap.NotifySuccess,
		"notify_failure_total":        snap.NotifyFailure,

		"policy":          snap.Policy,
		"transport":       snap.Transport,
		"storage_backend": snap.StorageBackend,
	}
}
