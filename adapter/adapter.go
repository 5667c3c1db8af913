// Package adapter defines the notification boundary: completion events
// published to downstream systems when a backtest finishes.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// EventTypeResultCompleted is the only event type published.
const EventTypeResultCompleted = "result_completed"

// ResultCompletedEvent is the payload published when a backtest completes.
type ResultCompletedEvent struct {
	ContractVersion string            `json:"contract_version"`
	EventType       string            `json:"event_type"`
	Session         string            `json:"session"`
	SessionID       string            `json:"session_id"`
	Transport       string            `json:"transport"`
	ResultType      string            `json:"result_type"`
	Timestamp       string            `json:"timestamp"` // RFC 3339
	Charts          int               `json:"charts"`
	Points          int               `json:"points"`
	Orders          int               `json:"orders"`
	ProfitLoss      string            `json:"profit_loss"`
	Statistics      map[string]string `json:"statistics,omitempty"`
	StoragePath     string            `json:"storage_path,omitempty"`
}

// NewResultCompletedEvent builds the event for a completed result.
func NewResultCompletedEvent(meta *types.SessionMeta, r *result.Result, at time.Time) *ResultCompletedEvent {
	s := r.Summarize()
	ev := &ResultCompletedEvent{
		ContractVersion: types.ArchiveContractVersion,
		EventType:       EventTypeResultCompleted,
		ResultType:      s.ResultType,
		Timestamp:       at.UTC().Format(time.RFC3339),
		Charts:          s.Charts,
		Points:          s.Points,
		Orders:          s.Orders,
		ProfitLoss:      s.ProfitLoss.String(),
		Statistics:      s.Statistics,
	}
	if meta != nil {
		ev.Session, ev.SessionID, ev.Transport = meta.Name, meta.ID, meta.Transport
	}
	return ev
}

// Adapter publishes completion events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ResultCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
