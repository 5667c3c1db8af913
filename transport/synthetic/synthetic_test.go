package synthetic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

func TestRun_Backtest(t *testing.T) {
	p, err := New(Config{Seed: 7, Interval: time.Millisecond, Steps: 4, TradeEvery: 2})
	if err != nil {
		t.Fatal(err)
	}
	sink := pipeline.NewStubSink()
	if err := p.Run(t.Context(), sink); err != nil {
		t.Fatalf("Run = %v", err)
	}

	pushed := sink.PushedSnapshot()
	first, ok := pushed[0].(*protocol.AlgorithmStatusPacket)
	if !ok || first.Status != protocol.StatusRunning {
		t.Fatalf("first packet = %#v, want Running status", pushed[0])
	}
	last, ok := pushed[len(pushed)-1].(*protocol.AlgorithmStatusPacket)
	if !ok || last.Status != protocol.StatusCompleted {
		t.Fatalf("last packet = %#v, want Completed status", pushed[len(pushed)-1])
	}

	var results []*protocol.BacktestResultPacket
	orders := 0
	for _, pkt := range pushed {
		switch v := pkt.(type) {
		case *protocol.BacktestResultPacket:
			results = append(results, v)
		case *protocol.OrderEventPacket:
			orders++
		}
	}
	if len(results) != 4 {
		t.Fatalf("got %d result packets, want 4", len(results))
	}
	if orders != 2 {
		t.Errorf("got %d order events, want 2", orders)
	}
	if got := results[len(results)-1].ProgressValue(); got != 1 {
		t.Errorf("final progress = %v, want 1", got)
	}
	if got := results[1].ProgressValue(); got != 0.5 {
		t.Errorf("progress at step 2 = %v, want 0.5", got)
	}
	final := results[len(results)-1].Result()
	if final.Statistics["Total Orders"] != "2" {
		t.Errorf("Total Orders = %q", final.Statistics["Total Orders"])
	}
	if len(final.ProfitLoss) != 1 {
		t.Errorf("closing trade should book P&L, got %d entries", len(final.ProfitLoss))
	}
}

func TestRun_MergesIntoCurve(t *testing.T) {
	p, _ := New(Config{Seed: 1, Interval: time.Millisecond, Steps: 5})
	sink := pipeline.NewStubSink()
	if err := p.Run(t.Context(), sink); err != nil {
		t.Fatal(err)
	}

	agg := result.New()
	for _, pkt := range sink.PushedSnapshot() {
		if v, ok := pkt.(*protocol.BacktestResultPacket); ok {
			if err := agg.Merge(v.Result()); err != nil {
				t.Fatal(err)
			}
		}
	}
	series := agg.Charts[EquityChart].Series[EquitySeries]
	if len(series.Values) != 5 {
		t.Fatalf("equity points = %d, want 5", len(series.Values))
	}
	for i := 1; i < len(series.Values); i++ {
		if series.Values[i].X <= series.Values[i-1].X {
			t.Fatalf("points out of order at %d", i)
		}
	}
}

func TestRun_Encoded(t *testing.T) {
	p, _ := New(Config{Seed: 3, Interval: time.Millisecond, Steps: 2, Encoded: true})
	sink := pipeline.NewStubSink()
	if err := p.Run(t.Context(), sink); err != nil {
		t.Fatal(err)
	}
	fed := sink.Snapshot()
	want := []types.PacketType{
		types.PacketAlgorithmStatus,
		types.PacketBacktestResult, types.PacketDebug,
		types.PacketBacktestResult, types.PacketDebug,
		types.PacketAlgorithmStatus,
	}
	if len(fed) != len(want) {
		t.Fatalf("fed %d payloads, want %d", len(fed), len(want))
	}
	for i, k := range want {
		if fed[i].Kind != k {
			t.Errorf("fed[%d].Kind = %v, want %v", i, fed[i].Kind, k)
		}
	}
	if _, ok, err := protocol.Decode(fed[1].Payload, fed[1].Kind); err != nil || !ok {
		t.Errorf("encoded result does not decode: ok=%v err=%v", ok, err)
	}
}

func TestRun_Deterministic(t *testing.T) {
	run := func() string {
		p, _ := New(Config{Seed: 42, Interval: time.Millisecond, Steps: 3})
		sink := pipeline.NewStubSink()
		if err := p.Run(t.Context(), sink); err != nil {
			t.Fatal(err)
		}
		agg := result.New()
		for _, pkt := range sink.PushedSnapshot() {
			if v, ok := pkt.(*protocol.BacktestResultPacket); ok {
				_ = agg.Merge(v.Result())
			}
		}
		return agg.RuntimeStatistics["Equity"]
	}
	if a, b := run(), run(); a != b {
		t.Errorf("same seed produced %q and %q", a, b)
	}
}

func TestRun_RestartsSimulation(t *testing.T) {
	p, err := New(Config{Seed: 11, Interval: time.Millisecond, Steps: 4, TradeEvery: 2, Encoded: true})
	if err != nil {
		t.Fatal(err)
	}
	run := func() []pipeline.FedPayload {
		sink := pipeline.NewStubSink()
		if err := p.Run(t.Context(), sink); err != nil {
			t.Fatal(err)
		}
		return sink.Snapshot()
	}
	first, second := run(), run()
	if len(first) != len(second) {
		t.Fatalf("second run fed %d payloads, first fed %d", len(second), len(first))
	}
	for i := range first {
		if first[i].Kind != second[i].Kind || string(first[i].Payload) != string(second[i].Payload) {
			t.Fatalf("payload %d differs between runs:\n%s\n%s", i, first[i].Payload, second[i].Payload)
		}
	}
}

func TestRun_LiveUntilCanceled(t *testing.T) {
	p, _ := New(Config{Live: true, Interval: time.Millisecond})
	sink := pipeline.NewStubSink()

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, sink) }()

	if !sink.WaitFor(10, 2*time.Second) {
		t.Fatal("live generator produced too few packets")
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	for _, pkt := range sink.PushedSnapshot() {
		if pkt.Kind() == types.PacketBacktestResult {
			t.Fatal("live generator emitted a backtest result")
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	for _, cfg := range []Config{{Interval: -1}, {Steps: -1}, {TradeEvery: -1}} {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) should fail", cfg)
		}
	}
}
