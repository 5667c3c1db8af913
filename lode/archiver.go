package lode

import (
	"context"
	"time"

	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// ResultFileName is the sidecar file holding the completed result.
const ResultFileName = "result.json"

// DefaultWriteTimeout bounds one archive write.
const DefaultWriteTimeout = 10 * time.Second

// ResultFileWriter is implemented by clients that store full results.
type ResultFileWriter interface {
	WriteResultFile(ctx context.Context, name string, r *result.Result) error
}

// Archiver is a pipeline.Handler decorator that archives a snapshot when a
// backtest completes, and once more on unsubscribe if the run did not
// complete. Archive failures are logged and never reach the session.
type Archiver struct {
	inner   pipeline.Handler
	client  Client
	cfg     Config
	logger  *log.Logger
	timeout time.Duration
	now     func() time.Time

	last      result.Context
	seen      bool
	completed bool
}

// NewArchiver decorates inner. A nil inner is a no-op handler.
func NewArchiver(inner pipeline.Handler, client Client, cfg Config, logger *log.Logger) *Archiver {
	if inner == nil {
		inner = pipeline.HandlerFuncs{}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Archiver{
		inner:   inner,
		client:  client,
		cfg:     cfg,
		logger:  logger,
		timeout: DefaultWriteTimeout,
		now:     time.Now,
	}
}

func (a *Archiver) OnResult(rc result.Context) error {
	err := a.inner.OnResult(rc)
	a.last, a.seen = rc, true
	if rc.Completed() && !a.completed {
		a.completed = true
		a.archive(rc, ReasonCompleted)
		a.writeResultFile(rc.Result)
	}
	return err
}

func (a *Archiver) OnLog(message string, kind types.LogKind) error {
	return a.inner.OnLog(message, kind)
}

func (a *Archiver) OnOrderEvent(p *protocol.OrderEventPacket) error {
	return a.inner.OnOrderEvent(p)
}

func (a *Archiver) OnAlgorithmStatus(p *protocol.AlgorithmStatusPacket) error {
	return a.inner.OnAlgorithmStatus(p)
}

// OnStateChanged runs after the consumer has stopped when the state is
// Unsubscribed, so the last result can be read safely.
func (a *Archiver) OnStateChanged(state types.SessionState) {
	a.inner.OnStateChanged(state)
	switch state {
	case types.SessionSubscribed:
		a.last, a.seen, a.completed = result.Context{}, false, false
	case types.SessionUnsubscribed:
		if a.seen && !a.completed {
			a.archive(a.last, ReasonTeardown)
		}
		a.seen = false
	}
}

func (a *Archiver) archive(rc result.Context, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	rec := NewSnapshotRecord(a.cfg, rc, reason, a.now())
	if err := a.client.WriteSnapshot(ctx, rec); err != nil {
		a.logger.Error("archive snapshot failed", map[string]any{
			"reason": reason,
			"error":  err.Error(),
		})
		return
	}
	a.logger.Info("snapshot archived", map[string]any{
		"reason":   reason,
		"points":   rec.Summary.Points,
		"orders":   rec.Summary.Orders,
		"progress": rec.Progress,
	})
}

func (a *Archiver) writeResultFile(r *result.Result) {
	w, ok := a.client.(ResultFileWriter)
	if !ok || r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := w.WriteResultFile(ctx, ResultFileName, r); err != nil {
		a.logger.Error("archive result file failed", map[string]any{"error": err.Error()})
	}
}

var _ pipeline.Handler = (*Archiver)(nil)
