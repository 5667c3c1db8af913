package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/metrics"
	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// DefaultPublishTimeout bounds one Publish including retries.
const DefaultPublishTimeout = 30 * time.Second

// Notifier is a pipeline.Handler decorator that publishes a
// ResultCompletedEvent the first time a subscription reports a completed
// backtest. Publish failures are logged and counted, never returned.
type Notifier struct {
	pipeline.Handler

	adapter   Adapter
	meta      *types.SessionMeta
	logger    *log.Logger
	collector *metrics.Collector
	timeout   time.Duration
	now       func() time.Time

	// StoragePath, if set, is copied into every event.
	StoragePath string

	sent bool
}

// NewNotifier decorates inner. A nil inner is a no-op handler.
func NewNotifier(inner pipeline.Handler, a Adapter, meta *types.SessionMeta, logger *log.Logger, collector *metrics.Collector) *Notifier {
	if inner == nil {
		inner = pipeline.HandlerFuncs{}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Notifier{
		Handler:   inner,
		adapter:   a,
		meta:      meta,
		logger:    logger,
		collector: collector,
		timeout:   DefaultPublishTimeout,
		now:       time.Now,
	}
}

func (n *Notifier) OnResult(rc result.Context) error {
	err := n.Handler.OnResult(rc)
	if rc.Completed() && !n.sent {
		n.sent = true
		n.publish(rc.Result)
	}
	return err
}

func (n *Notifier) OnStateChanged(state types.SessionState) {
	n.Handler.OnStateChanged(state)
	if state == types.SessionSubscribed {
		n.sent = false
	}
}

func (n *Notifier) publish(r *result.Result) {
	ev := NewResultCompletedEvent(n.meta, r, n.now())
	ev.StoragePath = n.StoragePath

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.adapter.Publish(ctx, ev); err != nil {
		n.collector.IncNotifyFailure()
		n.logger.Error("completion notification failed", map[string]any{"error": err.Error()})
		return
	}
	n.collector.IncNotifySuccess()
	n.logger.Info("completion notification published", map[string]any{
		"points": ev.Points,
		"orders": ev.Orders,
	})
}

var _ pipeline.Handler = (*Notifier)(nil)
