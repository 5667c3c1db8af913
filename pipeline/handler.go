package pipeline

import (
	"errors"

	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// Handler receives the output of the pipeline.
//
// All methods except OnStateChanged are called from the consumer goroutine,
// one at a time, in packet order. OnStateChanged is called synchronously by
// the session on every transition. A returned error is fatal to the session.
//
// The result.Context passed to OnResult references the live aggregate;
// implementations must not mutate it and must Clone it to keep it.
type Handler interface {
	OnResult(ctx result.Context) error
	OnLog(message string, kind types.LogKind) error
	OnOrderEvent(p *protocol.OrderEventPacket) error
	OnAlgorithmStatus(p *protocol.AlgorithmStatusPacket) error
	OnStateChanged(state types.SessionState)
}

// HandlerFuncs adapts optional functions to Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	Result          func(ctx result.Context) error
	Log             func(message string, kind types.LogKind) error
	OrderEvent      func(p *protocol.OrderEventPacket) error
	AlgorithmStatus func(p *protocol.AlgorithmStatusPacket) error
	StateChanged    func(state types.SessionState)
}

func (h HandlerFuncs) OnResult(ctx result.Context) error {
	if h.Result == nil {
		return nil
	}
	return h.Result(ctx)
}

func (h HandlerFuncs) OnLog(message string, kind types.LogKind) error {
	if h.Log == nil {
		return nil
	}
	return h.Log(message, kind)
}

func (h HandlerFuncs) OnOrderEvent(p *protocol.OrderEventPacket) error {
	if h.OrderEvent == nil {
		return nil
	}
	return h.OrderEvent(p)
}

func (h HandlerFuncs) OnAlgorithmStatus(p *protocol.AlgorithmStatusPacket) error {
	if h.AlgorithmStatus == nil {
		return nil
	}
	return h.AlgorithmStatus(p)
}

func (h HandlerFuncs) OnStateChanged(state types.SessionState) {
	if h.StateChanged != nil {
		h.StateChanged(state)
	}
}

// MultiHandler fans every callback out to each handler in order.
// Every handler is called even if an earlier one fails; the errors are joined.
type MultiHandler []Handler

func (m MultiHandler) OnResult(ctx result.Context) error {
	var errs []error
	for _, h := range m {
		errs = append(errs, h.OnResult(ctx))
	}
	return errors.Join(errs...)
}

func (m MultiHandler) OnLog(message string, kind types.LogKind) error {
	var errs []error
	for _, h := range m {
		errs = append(errs, h.OnLog(message, kind))
	}
	return errors.Join(errs...)
}

func (m MultiHandler) OnOrderEvent(p *protocol.OrderEventPacket) error {
	var errs []error
	for _, h := range m {
		errs = append(errs, h.OnOrderEvent(p))
	}
	return errors.Join(errs...)
}

func (m MultiHandler) OnAlgorithmStatus(p *protocol.AlgorithmStatusPacket) error {
	var errs []error
	for _, h := range m {
		errs = append(errs, h.OnAlgorithmStatus(p))
	}
	return errors.Join(errs...)
}

func (m MultiHandler) OnStateChanged(state types.SessionState) {
	for _, h := range m {
		h.OnStateChanged(state)
	}
}
