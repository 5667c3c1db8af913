package cmd

import (
	"sync"

	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// printer is the non-interactive watch handler. It logs pipeline output
// and keeps the latest summary for the final report.
type printer struct {
	logger *log.Logger

	mu       sync.Mutex
	summary  result.Summary
	progress float64
	updates  int
	decile   int
	status   string
}

func newPrinter(logger *log.Logger) *printer {
	return &printer{logger: logger, decile: -1}
}

func (p *printer) OnResult(rc result.Context) error {
	s := rc.Result.Summarize()
	p.mu.Lock()
	p.summary, p.progress = s, rc.Progress
	p.updates++
	decile := int(rc.Progress * 10)
	report := decile != p.decile
	p.decile = decile
	p.mu.Unlock()

	fields := map[string]any{
		"progress":    rc.Progress,
		"points":      s.Points,
		"orders":      s.Orders,
		"profit_loss": s.ProfitLoss.String(),
	}
	if report {
		p.logger.Info("result updated", fields)
	} else {
		p.logger.Debug("result updated", fields)
	}
	return nil
}

func (p *printer) OnLog(message string, kind types.LogKind) error {
	fields := map[string]any{"kind": kind.String(), "message": message}
	switch kind {
	case types.LogKindDebug:
		p.logger.Debug("algorithm log", fields)
	case types.LogKindError:
		p.logger.Warn("algorithm error", fields)
	default:
		p.logger.Info("algorithm log", fields)
	}
	return nil
}

func (p *printer) OnOrderEvent(pkt *protocol.OrderEventPacket) error {
	ev := pkt.Event
	p.logger.Info("order event", map[string]any{
		"order_id":      ev.OrderID,
		"symbol":        ev.Symbol.String(),
		"status":        ev.Status.String(),
		"direction":     ev.Direction.String(),
		"fill_price":    ev.FillPrice.String(),
		"fill_quantity": ev.FillQuantity.String(),
	})
	return nil
}

func (p *printer) OnAlgorithmStatus(pkt *protocol.AlgorithmStatusPacket) error {
	p.mu.Lock()
	p.status = pkt.Status.String()
	p.mu.Unlock()
	p.logger.Info("algorithm status", map[string]any{
		"status":  pkt.Status.String(),
		"message": pkt.Message,
	})
	return nil
}

func (p *printer) OnStateChanged(types.SessionState) {}

// last returns the latest summary, progress, update count and status.
func (p *printer) last() (result.Summary, float64, int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary, p.progress, p.updates, p.status
}

var _ pipeline.Handler = (*printer)(nil)
