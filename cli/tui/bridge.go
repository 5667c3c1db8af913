package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// ResultMsg carries a summary of the merged result.
type ResultMsg struct {
	Summary  result.Summary
	Progress float64
}

// LogMsg carries one forwarded log line.
type LogMsg struct {
	Kind types.LogKind
	Text string
}

// OrderMsg carries one order event.
type OrderMsg struct {
	Line string
}

// StatusMsg carries an algorithm status change.
type StatusMsg struct {
	Status  string
	Message string
}

// StateMsg carries a session state transition.
type StateMsg struct {
	State types.SessionState
}

// DoneMsg ends the view. Err is the session outcome.
type DoneMsg struct {
	Err error
}

// Bridge forwards pipeline callbacks to a running program. Results are
// summarized on the consumer goroutine; the view never holds the aggregate.
type Bridge struct {
	send func(tea.Msg)
}

// NewBridge returns a handler that forwards to send, typically
// (*tea.Program).Send.
func NewBridge(send func(tea.Msg)) *Bridge {
	return &Bridge{send: send}
}

func (b *Bridge) OnResult(rc result.Context) error {
	b.send(ResultMsg{Summary: rc.Result.Summarize(), Progress: rc.Progress})
	return nil
}

func (b *Bridge) OnLog(message string, kind types.LogKind) error {
	b.send(LogMsg{Kind: kind, Text: message})
	return nil
}

func (b *Bridge) OnOrderEvent(p *protocol.OrderEventPacket) error {
	ev := p.Event
	b.send(OrderMsg{Line: fmt.Sprintf("#%d %s %s %s @ %s",
		ev.OrderID, ev.Status, ev.Direction, ev.Symbol, ev.FillPrice.String())})
	return nil
}

func (b *Bridge) OnAlgorithmStatus(p *protocol.AlgorithmStatusPacket) error {
	b.send(StatusMsg{Status: p.Status.String(), Message: p.Message})
	return nil
}

func (b *Bridge) OnStateChanged(state types.SessionState) {
	b.send(StateMsg{State: state})
}

var _ pipeline.Handler = (*Bridge)(nil)
