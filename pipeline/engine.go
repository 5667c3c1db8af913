// Package pipeline decouples packet production from packet consumption.
//
// A transport feeds raw payloads (or typed packets) into an Engine from its
// producer goroutine. The Engine's consumer loop takes packets in push
// order, folds result packets into the running aggregate, and routes every
// packet to the Handler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/metrics"
	"github.com/pithecene-io/sextant/policy"
	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// Sink is the producer-side entry point handed to transports.
type Sink interface {
	// Feed decodes payload as the declared kind and enqueues it.
	// handled is false for unknown kinds, which are dropped without error.
	// A malformed payload for a known kind returns a decode PipelineError.
	Feed(ctx context.Context, payload []byte, kind types.PacketType) (handled bool, err error)
	// FeedAny is Feed with the kind read from the payload's eType.
	FeedAny(ctx context.Context, payload []byte) (handled bool, err error)
	// Push enqueues an already-typed packet.
	Push(ctx context.Context, p protocol.Packet) error
}

// Config configures an Engine.
type Config struct {
	// Name is the session name reported in every result.Context.
	Name string
	// Queue selects the queue overflow policy.
	Queue policy.Config
	// Handler receives dispatched packets. Required.
	Handler Handler
	// CloseAfterCompleted makes Run return ErrCompleted after publishing a
	// backtest result whose progress reached 1.
	CloseAfterCompleted bool
	// Marshal, if set, wraps every handler call. It must invoke fn before
	// returning; it exists so callers can hop to their own goroutine.
	Marshal func(fn func())
	// Logger is optional; nil discards.
	Logger *log.Logger
	// Collector is optional.
	Collector *metrics.Collector
}

// Engine owns the queue, the consumer loop and the result aggregate.
// The aggregate is touched only by the consumer goroutine.
type Engine struct {
	cfg     Config
	queue   *Queue
	logger  *log.Logger
	metrics *metrics.Collector

	result  *result.Result
	started atomic.Bool
	done    chan struct{}

	taps   []func(payload []byte, kind types.PacketType)
	tapsMu sync.RWMutex
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Handler == nil {
		return nil, errors.New("pipeline handler is required")
	}
	queue, err := NewQueue(cfg.Queue)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Engine{
		cfg:     cfg,
		queue:   queue,
		logger:  logger,
		metrics: cfg.Collector,
		result:  result.New(),
		done:    make(chan struct{}),
	}, nil
}

// Tap registers fn to observe every payload accepted by Feed, before it is
// enqueued. Used by the recorder. Must be called before the producer starts.
func (e *Engine) Tap(fn func(payload []byte, kind types.PacketType)) {
	e.tapsMu.Lock()
	e.taps = append(e.taps, fn)
	e.tapsMu.Unlock()
}

// Feed implements Sink. Decoding happens on the producer goroutine so a
// malformed payload is reported to the transport that received it.
func (e *Engine) Feed(ctx context.Context, payload []byte, kind types.PacketType) (bool, error) {
	e.metrics.IncPacketsFed()

	p, ok, err := protocol.Decode(payload, kind)
	if err != nil {
		e.metrics.IncDecodeErrors()
		e.logger.Error("packet decode failed", map[string]any{
			"kind":  kind.String(),
			"error": err.Error(),
		})
		return false, &PipelineError{Kind: ErrorKindDecode, Err: err}
	}
	if !ok {
		e.metrics.IncPacketsUnhandled()
		e.logger.Debug("ignoring packet of unknown kind", map[string]any{
			"kind": kind.String(),
		})
		return false, nil
	}

	e.tapsMu.RLock()
	for _, tap := range e.taps {
		tap(payload, kind)
	}
	e.tapsMu.RUnlock()

	if err := e.Push(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}

// FeedAny peeks at the payload's own eType and feeds it.
func (e *Engine) FeedAny(ctx context.Context, payload []byte) (bool, error) {
	kind, err := protocol.PeekKind(payload)
	if err != nil {
		if errors.Is(err, protocol.ErrMissingKind) {
			e.metrics.IncPacketsFed()
			e.metrics.IncPacketsUnhandled()
			return false, nil
		}
		e.metrics.IncPacketsFed()
		e.metrics.IncDecodeErrors()
		return false, &PipelineError{Kind: ErrorKindDecode, Err: err}
	}
	return e.Feed(ctx, payload, kind)
}

// Push implements Sink.
func (e *Engine) Push(ctx context.Context, p protocol.Packet) error {
	if p == nil {
		return errors.New("cannot push a nil packet")
	}
	if err := e.queue.Push(ctx, p); err != nil {
		if ctx.Err() != nil {
			return &PipelineError{Kind: ErrorKindCanceled, Err: err}
		}
		return err
	}
	return nil
}

// Run is the consumer loop. It takes packets in push order and dispatches
// them until ctx is canceled, the queue is closed and drained, dispatch
// fails, or a completed backtest triggers auto-close.
//
// Returns:
//   - nil when the queue was closed and drained
//   - a canceled PipelineError when ctx ended (normal shutdown)
//   - ErrCompleted on auto-close
//   - a handler PipelineError when dispatch failed (fatal)
//
// Done is closed when Run returns, whatever the outcome. Run may be called
// once per Engine.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.done)

	for {
		// Queued packets are not dispatched after cancellation; only Close drains.
		if ctx.Err() != nil {
			return &PipelineError{Kind: ErrorKindCanceled, Err: ctx.Err()}
		}
		p, err := e.queue.Take(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return &PipelineError{Kind: ErrorKindCanceled, Err: ctx.Err()}
			}
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}

		if _, err := e.Dispatch(p); err != nil {
			if errors.Is(err, ErrCompleted) {
				e.logger.Info("backtest completed", map[string]any{
					"session": e.cfg.Name,
				})
				return ErrCompleted
			}
			e.logger.Error("packet dispatch failed", map[string]any{
				"kind":  p.Kind().String(),
				"error": err.Error(),
			})
			return &PipelineError{Kind: ErrorKindHandler, Err: err}
		}
	}
}

// Dispatch routes one packet. It reports whether the packet kind is
// handled; node packets and unknown kinds are not. Dispatch must only be
// called from the consumer goroutine, or while Run is not running.
func (e *Engine) Dispatch(p protocol.Packet) (bool, error) {
	h := e.cfg.Handler
	switch v := p.(type) {
	case *protocol.AlgorithmStatusPacket:
		e.metrics.IncPacketsDispatched()
		return true, e.call(func() error { return h.OnAlgorithmStatus(v) })

	case *protocol.LiveResultPacket:
		if err := e.merge(v.Result()); err != nil {
			return true, err
		}
		e.metrics.IncPacketsDispatched()
		rc := result.NewContext(e.cfg.Name, e.result, 0)
		return true, e.call(func() error { return h.OnResult(rc) })

	case *protocol.BacktestResultPacket:
		if err := e.merge(v.Result()); err != nil {
			return true, err
		}
		e.metrics.IncPacketsDispatched()
		rc := result.NewContext(e.cfg.Name, e.result, v.ProgressValue())
		if err := e.call(func() error { return h.OnResult(rc) }); err != nil {
			return true, err
		}
		if rc.Completed() && e.cfg.CloseAfterCompleted {
			return true, ErrCompleted
		}
		return true, nil

	case *protocol.LogPacket:
		kind, ok := types.LogKindFor(v.Kind())
		if !ok {
			return e.unhandled(p)
		}
		e.metrics.IncPacketsDispatched()
		return true, e.call(func() error { return h.OnLog(v.Message, kind) })

	case *protocol.OrderEventPacket:
		e.metrics.IncPacketsDispatched()
		return true, e.call(func() error { return h.OnOrderEvent(v) })

	default:
		// Node packets are reserved: reported as not handled so callers can log them.
		return e.unhandled(p)
	}
}

func (e *Engine) unhandled(p protocol.Packet) (bool, error) {
	e.metrics.IncPacketsUnhandled()
	e.logger.Debug("packet not handled", map[string]any{
		"kind":    p.Kind().String(),
		"channel": p.ChannelName(),
	})
	return false, nil
}

func (e *Engine) merge(incoming *result.Result) error {
	if err := e.result.Merge(incoming); err != nil {
		return fmt.Errorf("merge result: %w", err)
	}
	e.metrics.IncMerges()
	return nil
}

// call runs a handler callback through Marshal, converting a panic into
// an error so that a poisoned handler ends the loop like any failure.
func (e *Engine) call(fn func() error) (err error) {
	run := func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		err = fn()
	}
	if e.cfg.Marshal != nil {
		e.cfg.Marshal(run)
	} else {
		run()
	}
	return err
}

// Done is closed when Run returns. It is the consumer's reset signal.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Close closes the queue. A running consumer drains what is queued and
// Run returns nil.
func (e *Engine) Close() {
	e.queue.Close()
}

// Result returns the aggregate. Only safe to read from handler callbacks
// or after Done is closed.
func (e *Engine) Result() *result.Result {
	return e.result
}

// QueueStats returns the queue counters.
func (e *Engine) QueueStats() policy.Stats {
	return e.queue.Stats()
}
