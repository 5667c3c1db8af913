// Package synthetic implements a timed generator that emits a plausible
// backtest or live run: status changes, incremental results carrying an
// equity curve, fills and logs. It needs no external system and drives
// demos and tests.
package synthetic

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// Chart and series names emitted by the generator.
const (
	EquityChart     = "Strategy Equity"
	EquitySeries    = "Equity"
	BenchmarkChart  = "Benchmark"
	BenchmarkSeries = "Benchmark"
)

const (
	defaultInterval = 100 * time.Millisecond
	defaultSteps    = 50
	defaultCapital  = 100000
)

// Config controls the generator.
type Config struct {
	// Seed makes runs reproducible. Zero seeds from the clock.
	Seed int64
	// Interval is the wall-clock pause between steps.
	Interval time.Duration
	// Steps is the number of result packets of a backtest. Ignored when Live.
	Steps int
	// Live emits LiveResult packets until canceled instead of a finite backtest.
	Live bool
	// TradeEvery places a filled order every n steps. Zero disables trading.
	TradeEvery int
	// Start is the simulated time of the first step (default 2020-01-01 UTC).
	Start time.Time
	// Encoded routes packets through Feed as JSON instead of Push.
	Encoded bool
	Logger  *log.Logger
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval must be >= 0")
	}
	if c.Steps < 0 {
		return fmt.Errorf("steps must be >= 0")
	}
	if c.TradeEvery < 0 {
		return fmt.Errorf("trade_every must be >= 0")
	}
	return nil
}

// Producer generates packets.
type Producer struct {
	cfg    Config
	rng    *rand.Rand
	logger *log.Logger

	step    int
	orderID int
	equity  decimal.Decimal
	bench   decimal.Decimal
	// position is the open quantity and its entry price.
	position decimal.Decimal
	entry    decimal.Decimal
}

// New creates a generator.
func New(cfg Config) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Steps == 0 {
		cfg.Steps = defaultSteps
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	p := &Producer{cfg: cfg, logger: logger}
	p.reset()
	return p, nil
}

// reset rewinds the simulation to its first step with the configured seed.
func (p *Producer) reset() {
	p.rng = rand.New(rand.NewSource(p.cfg.Seed))
	p.step, p.orderID = 0, 0
	p.equity = decimal.NewFromInt(defaultCapital)
	p.bench = decimal.NewFromInt(defaultCapital)
	p.position, p.entry = decimal.Zero, decimal.Zero
}

// Run emits packets until the backtest finishes (returns nil) or ctx is
// canceled. Every Run starts a new simulation, so a resubscribed session
// sees the whole run again.
func (p *Producer) Run(ctx context.Context, sink pipeline.Sink) error {
	p.reset()
	if err := p.emit(ctx, sink, p.status(protocol.StatusRunning)); err != nil {
		return err
	}
	for p.cfg.Live || p.step < p.cfg.Steps {
		if err := p.sleep(ctx); err != nil {
			return err
		}
		p.step++
		for _, pkt := range p.next() {
			if err := p.emit(ctx, sink, pkt); err != nil {
				return err
			}
		}
	}
	return p.emit(ctx, sink, p.status(protocol.StatusCompleted))
}

func (p *Producer) sleep(ctx context.Context) error {
	t := time.NewTimer(p.cfg.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Producer) emit(ctx context.Context, sink pipeline.Sink, pkt protocol.Packet) error {
	if !p.cfg.Encoded {
		return sink.Push(ctx, pkt)
	}
	payload, err := protocol.Encode(pkt)
	if err != nil {
		return err
	}
	_, err = sink.Feed(ctx, payload, pkt.Kind())
	return err
}

func (p *Producer) now() time.Time {
	return p.cfg.Start.AddDate(0, 0, p.step)
}

// next advances the simulation one step and returns its packets.
func (p *Producer) next() []protocol.Packet {
	at := p.now()
	drift := decimal.NewFromFloat(p.rng.NormFloat64() * 0.01).Round(6)
	p.bench = p.bench.Mul(decimal.NewFromInt(1).Add(drift.Div(decimal.NewFromInt(2)))).Round(2)
	p.equity = p.equity.Mul(decimal.NewFromInt(1).Add(drift)).Round(2)

	res := result.New()
	res.Charts[EquityChart] = chartWith(EquityChart, EquitySeries, result.Point{X: at.Unix(), Y: p.equity})
	res.Charts[BenchmarkChart] = chartWith(BenchmarkChart, BenchmarkSeries, result.Point{X: at.Unix(), Y: p.bench})
	res.RuntimeStatistics["Equity"] = "$" + p.equity.StringFixed(2)

	var out []protocol.Packet
	if p.cfg.TradeEvery > 0 && p.step%p.cfg.TradeEvery == 0 {
		order, ev := p.trade(at)
		res.Orders[order.ID] = order
		if pnl, ok := p.realized(order); ok {
			res.ProfitLoss[at] = pnl
		}
		out = append(out, &protocol.OrderEventPacket{
			Header: protocol.Header{Type: types.PacketOrderEvent},
			Event:  ev,
		})
	}

	if p.cfg.Live {
		out = append(out, &protocol.LiveResultPacket{
			Header:  protocol.Header{Type: types.PacketLiveResult},
			Results: res,
		})
	} else {
		progress := decimal.NewFromInt(int64(p.step)).Div(decimal.NewFromInt(int64(p.cfg.Steps))).Round(4)
		if p.step == p.cfg.Steps {
			res.Statistics["Net Profit"] = p.equity.Sub(decimal.NewFromInt(defaultCapital)).
				Div(decimal.NewFromInt(defaultCapital)).Mul(decimal.NewFromInt(100)).StringFixed(3) + "%"
			res.Statistics["Total Orders"] = fmt.Sprint(p.orderID)
			progress = decimal.NewFromInt(1)
		}
		out = append(out, &protocol.BacktestResultPacket{
			Header:       protocol.Header{Type: types.PacketBacktestResult},
			Name:         "synthetic",
			PeriodStart:  result.Timestamp{Time: p.cfg.Start},
			PeriodFinish: result.Timestamp{Time: at},
			Progress:     progress,
			Results:      res,
		})
	}
	out = append(out, protocol.NewLogPacket(types.PacketDebug,
		fmt.Sprintf("step %d equity %s", p.step, p.equity.StringFixed(2))))
	return out
}

func chartWith(chart, series string, pt result.Point) *result.Chart {
	c := result.NewChart(chart)
	s := result.NewSeries(series, result.SeriesLine)
	s.Values = append(s.Values, pt)
	c.Series[series] = s
	return c
}

// trade flips between long and flat at a random price.
func (p *Producer) trade(at time.Time) (*result.Order, protocol.OrderEvent) {
	p.orderID++
	price := decimal.NewFromFloat(100 + p.rng.Float64()*20).Round(2)
	qty := decimal.NewFromInt(int64(10 + p.rng.Intn(90)))
	direction := result.DirectionBuy
	if p.position.IsPositive() {
		qty = p.position.Neg()
		direction = result.DirectionSell
	}
	ts := result.Timestamp{Time: at}
	order := &result.Order{
		ID:           p.orderID,
		Symbol:       result.Symbol{Value: "SPY"},
		Price:        price,
		Time:         ts,
		CreatedTime:  ts,
		LastFillTime: ts,
		Quantity:     qty,
		Type:         result.OrderMarket,
		Status:       result.OrderStatusFilled,
		SecurityType: result.SecurityEquity,
		Direction:    direction,
		Value:        price.Mul(qty),
	}
	ev := protocol.OrderEvent{
		OrderID:      p.orderID,
		Symbol:       order.Symbol,
		UtcTime:      ts,
		Status:       result.OrderStatusFilled,
		FillPrice:    price,
		FillQuantity: qty,
		Quantity:     qty,
		Direction:    direction,
	}
	return order, ev
}

// realized books the fill against the open position and reports the
// realized P&L when the position closes.
func (p *Producer) realized(o *result.Order) (decimal.Decimal, bool) {
	if o.Direction == result.DirectionBuy {
		p.position = o.Quantity
		p.entry = o.Price
		return decimal.Zero, false
	}
	pnl := o.Price.Sub(p.entry).Mul(o.Quantity.Neg()).Round(2)
	p.position = decimal.Zero
	return pnl, true
}

func (p *Producer) status(s protocol.AlgorithmStatus) *protocol.AlgorithmStatusPacket {
	return &protocol.AlgorithmStatusPacket{
		Header:      protocol.Header{Type: types.PacketAlgorithmStatus},
		AlgorithmID: "synthetic",
		Status:      s,
	}
}
