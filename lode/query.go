package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ErrNoSnapshotFound is returned when no snapshot record matches.
var ErrNoSnapshotFound = errors.New("no snapshot records found")

// ErrNoMetricsFound is returned when no metrics record matches.
var ErrNoMetricsFound = errors.New("no metrics records found")

// QueryLatestSnapshot returns the most recent snapshot record, filtered by
// session ID and session name when non-empty.
func QueryLatestSnapshot(ctx context.Context, ds lode.Dataset, sessionID, session string) (*SnapshotRecord, error) {
	m, err := queryLatest(ctx, ds, RecordKindSnapshot, sessionID, session)
	if err != nil {
		if errors.Is(err, errNoRecord) {
			return nil, ErrNoSnapshotFound
		}
		return nil, err
	}
	return SnapshotFromRecord(m)
}

// QueryLatestMetrics returns the most recent metrics record as a raw map.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, sessionID, session string) (map[string]any, error) {
	m, err := queryLatest(ctx, ds, RecordKindMetrics, sessionID, session)
	if errors.Is(err, errNoRecord) {
		return nil, ErrNoMetricsFound
	}
	return m, err
}

var errNoRecord = errors.New("no record")

func queryLatest(ctx context.Context, ds lode.Dataset, kind, sessionID, session string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	// Latest first; snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotHasKind(snap, kind) ||
			!snapshotMatchesFilter(snap, "session_id", sessionID) ||
			!snapshotMatchesFilter(snap, "session", session) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}
		// Path filters are coarse; record fields decide.
		for j := len(data) - 1; j >= 0; j-- {
			record, ok := data[j].(map[string]any)
			if !ok || record["record_kind"] != kind {
				continue
			}
			if sessionID != "" && toString(record["session_id"]) != sessionID {
				continue
			}
			if session != "" && toString(record["session"]) != session {
				continue
			}
			return record, nil
		}
	}
	return nil, errNoRecord
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
