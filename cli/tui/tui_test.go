package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

func update(t *testing.T, m WatchModel, msgs ...tea.Msg) WatchModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(WatchModel)
		if !ok {
			t.Fatalf("Update returned %T", next)
		}
	}
	return m
}

func TestWatchModel_RendersSessionState(t *testing.T) {
	m := NewWatchModel(types.NewSessionMeta("spy-momentum", "synthetic"))
	m = update(t, m,
		StateMsg{State: types.SessionSubscribed},
		StatusMsg{Status: "Running", Message: "warming up"},
		ResultMsg{Progress: 0.5, Summary: result.Summary{
			ResultType: "Backtest",
			Charts:     2,
			Series:     2,
			Points:     40,
			Orders:     3,
			ProfitLoss: decimal.RequireFromString("-4.25"),
			Statistics: map[string]string{"Net Profit": "-4.25"},
		}},
		OrderMsg{Line: "#1 Filled Buy SPY @ 100"},
		LogMsg{Kind: types.LogKindDebug, Text: "step 20"},
	)

	view := m.View()
	for _, want := range []string{
		"spy-momentum", "synthetic", "subscribed", "Running", "warming up",
		" 50%", "40 points", "3 (0 open)", "-4.25", "Net Profit",
		"#1 Filled Buy SPY @ 100", "step 20",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if m.results != 1 {
		t.Errorf("results = %d, want 1", m.results)
	}
}

func TestWatchModel_BoundsLogAndOrders(t *testing.T) {
	m := NewWatchModel(types.NewSessionMeta("s", "replay"))
	for i := range 20 {
		m = update(t, m,
			LogMsg{Kind: types.LogKindLog, Text: fmt.Sprintf("line %d", i)},
			OrderMsg{Line: fmt.Sprintf("order %d", i)},
		)
	}
	if len(m.logs) != maxLogLines || m.logs[len(m.logs)-1].Text != "line 19" {
		t.Errorf("logs = %v", m.logs)
	}
	if len(m.orders) != maxOrderLines || m.orders[0] != "order 15" {
		t.Errorf("orders = %v", m.orders)
	}
}

func TestWatchModel_QuitAndDone(t *testing.T) {
	m := NewWatchModel(types.NewSessionMeta("s", "replay"))

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || !next.(WatchModel).Quitting() {
		t.Error("q should quit")
	}

	next, cmd = m.Update(DoneMsg{Err: errors.New("boom")})
	if cmd == nil {
		t.Error("DoneMsg should quit")
	}
	done := next.(WatchModel)
	if done.Quitting() {
		t.Error("DoneMsg is not a user quit")
	}
	if !strings.Contains(done.View(), "session failed: boom") {
		t.Errorf("view missing failure:\n%s", done.View())
	}
}

func TestBridge_ForwardsCallbacks(t *testing.T) {
	var msgs []tea.Msg
	b := NewBridge(func(msg tea.Msg) { msgs = append(msgs, msg) })

	r := result.New()
	r.Statistics = map[string]string{"Total Orders": "1"}
	if err := b.OnResult(result.NewContext("s", r, 1)); err != nil {
		t.Fatal(err)
	}
	if err := b.OnLog("hello", types.LogKindError); err != nil {
		t.Fatal(err)
	}
	ev := &protocol.OrderEventPacket{Event: protocol.OrderEvent{
		OrderID:   7,
		Symbol:    result.Symbol{Value: "SPY"},
		Status:    result.OrderStatusFilled,
		Direction: result.DirectionSell,
		FillPrice: decimal.NewFromInt(101),
	}}
	if err := b.OnOrderEvent(ev); err != nil {
		t.Fatal(err)
	}
	if err := b.OnAlgorithmStatus(&protocol.AlgorithmStatusPacket{Status: protocol.StatusCompleted}); err != nil {
		t.Fatal(err)
	}
	b.OnStateChanged(types.SessionUnsubscribed)

	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	rm, ok := msgs[0].(ResultMsg)
	if !ok || rm.Progress != 1 || rm.Summary.Statistics["Total Orders"] != "1" {
		t.Errorf("result msg = %#v", msgs[0])
	}
	if om, ok := msgs[2].(OrderMsg); !ok || om.Line != "#7 Filled Sell SPY @ 101" {
		t.Errorf("order msg = %#v", msgs[2])
	}
	if sm, ok := msgs[3].(StatusMsg); !ok || sm.Status != "Completed" {
		t.Errorf("status msg = %#v", msgs[3])
	}
	if st, ok := msgs[4].(StateMsg); !ok || st.State != types.SessionUnsubscribed {
		t.Errorf("state msg = %#v", msgs[4])
	}
}

func TestProgressBar(t *testing.T) {
	for _, p := range []float64{0, 0.25, 1} {
		bar := progressBar(p)
		want := fmt.Sprintf("%3.0f%%", p*100)
		if !strings.Contains(bar, want) {
			t.Errorf("progressBar(%v) = %q, want suffix %q", p, bar, want)
		}
	}
}
