// Package session owns the subscribe/unsubscribe life-cycle of one
// connection to an algorithm engine.
//
// A subscribed session runs three goroutines: the transport's producer
// loop, the pipeline consumer loop, and a supervisor that tears the
// subscription down when either loop ends. Both loops share one context
// that Unsubscribe cancels.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pithecene-io/sextant/log"
	"github.com/pithecene-io/sextant/metrics"
	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/policy"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("session closed")

// Producer is a transport's producer loop. Run feeds packets into sink
// until ctx is canceled or the source ends.
//
// Run returns nil when the source ended normally (end of file, peer closed
// the stream); the session then drains what was queued and unsubscribes.
// Any other error is fatal to the subscription. Errors returned after ctx
// was canceled are ignored.
type Producer interface {
	Run(ctx context.Context, sink pipeline.Sink) error
}

// Opener is implemented by producers that connect before Run.
// Open errors fail Subscribe.
type Opener interface {
	Open(ctx context.Context) error
}

// Config configures a Session.
type Config struct {
	// Meta identifies the session. Required.
	Meta *types.SessionMeta
	// Producer is the transport. Required. If it implements Opener it is
	// opened on every Subscribe; if it implements io.Closer it is closed on
	// every Unsubscribe.
	Producer Producer
	// Handler receives pipeline output and state changes. Required.
	Handler pipeline.Handler
	// CloseAfterCompleted unsubscribes once a backtest reports progress 1.
	CloseAfterCompleted bool
	// Queue selects the queue overflow policy.
	Queue policy.Config
	// Marshal, if set, wraps every handler call; see pipeline.Config.
	Marshal func(fn func())
	// Taps observe every accepted payload; see pipeline.Engine.Tap.
	Taps []func(payload []byte, kind types.PacketType)
	// Logger is optional; nil discards.
	Logger *log.Logger
	// Collector is optional.
	Collector *metrics.Collector
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if err := c.Meta.Validate(); err != nil {
		return err
	}
	if c.Producer == nil {
		return errors.New("session producer is required")
	}
	if c.Handler == nil {
		return errors.New("session handler is required")
	}
	return c.Queue.Validate()
}

// subscription is the state of one Subscribe..Unsubscribe span.
type subscription struct {
	engine       *pipeline.Engine
	cancel       context.CancelFunc
	producerDone chan struct{}
	done         chan struct{}
}

// Session is the state machine. Unsubscribed is both the initial and the
// terminal state. All transitions are serialized; every transition is
// reported synchronously to Handler.OnStateChanged.
//
// Handler callbacks run on the consumer goroutine and must not call
// Subscribe, Unsubscribe or Close directly; use RequestUnsubscribe.
type Session struct {
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Collector

	mu      sync.Mutex // serializes transitions
	state   atomic.Int32
	sub     *subscription
	current atomic.Pointer[subscription]
	closed  bool

	outcomeMu sync.Mutex
	done      chan struct{}
	err       error
	completed bool
}

// New creates an unsubscribed session.
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	done := make(chan struct{})
	close(done)
	return &Session{
		cfg:     cfg,
		logger:  logger,
		metrics: cfg.Collector,
		done:    done,
	}, nil
}

// Initialize subscribes the session.
func (s *Session) Initialize(ctx context.Context) error {
	return s.Subscribe(ctx)
}

// Subscribe opens the transport and starts the producer and consumer.
// It is a no-op when already subscribed. ctx bounds only the open; the
// subscription lives until Unsubscribe or a terminal pipeline outcome.
func (s *Session) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.sub != nil {
		return nil
	}

	if opener, ok := s.cfg.Producer.(Opener); ok {
		if err := opener.Open(ctx); err != nil {
			s.logger.Error("subscribe failed", map[string]any{"error": err.Error()})
			return fmt.Errorf("could not subscribe to the %s stream: %w", s.cfg.Meta.Transport, err)
		}
	}

	engine, err := pipeline.NewEngine(pipeline.Config{
		Name:                s.cfg.Meta.Name,
		Queue:               s.cfg.Queue,
		Handler:             s.cfg.Handler,
		CloseAfterCompleted: s.cfg.CloseAfterCompleted,
		Marshal:             s.cfg.Marshal,
		Logger:              s.logger,
		Collector:           s.metrics,
	})
	if err != nil {
		s.closeProducer()
		return fmt.Errorf("could not subscribe to the %s stream: %w", s.cfg.Meta.Transport, err)
	}
	for _, tap := range s.cfg.Taps {
		engine.Tap(tap)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		engine:       engine,
		cancel:       cancel,
		producerDone: make(chan struct{}),
		done:         make(chan struct{}),
	}
	s.sub = sub
	s.current.Store(sub)
	s.outcomeMu.Lock()
	s.done = sub.done
	s.err, s.completed = nil, false
	s.outcomeMu.Unlock()

	s.metrics.IncSessionStarted()
	s.logger.Info("session subscribed", map[string]any{
		"queue":                 string(s.cfg.Queue.Mode),
		"close_after_completed": s.cfg.CloseAfterCompleted,
	})
	// Notify before the loops start so no packet is reported ahead of the transition.
	s.transition(types.SessionSubscribed)

	producerErr := make(chan error, 1)
	consumerErr := make(chan error, 1)
	go func() {
		defer close(sub.producerDone)
		producerErr <- s.cfg.Producer.Run(runCtx, engine)
	}()
	go func() {
		consumerErr <- engine.Run(runCtx)
	}()
	go s.supervise(runCtx, sub, producerErr, consumerErr)
	return nil
}

// supervise waits for the loops of sub to end and decides the outcome.
func (s *Session) supervise(ctx context.Context, sub *subscription, producerErr, consumerErr <-chan error) {
	for {
		select {
		case err := <-producerErr:
			producerErr = nil
			switch {
			case ctx.Err() != nil:
				// Unsubscribe in progress.
			case err == nil:
				s.logger.Info("producer finished; draining queue", nil)
				sub.engine.Close()
			default:
				s.logger.Error("producer failed", map[string]any{"error": err.Error()})
				if !pipeline.IsDecodeError(err) && !pipeline.IsCanceledError(err) {
					err = &pipeline.PipelineError{Kind: pipeline.ErrorKindProducer, Err: err}
				}
				s.teardown(sub, err, false)
				return
			}

		case err := <-consumerErr:
			switch {
			case ctx.Err() != nil:
				return
			case err == nil:
				s.teardown(sub, nil, false)
			case errors.Is(err, pipeline.ErrCompleted):
				s.metrics.IncSessionCompleted()
				s.teardown(sub, nil, true)
			default:
				s.teardown(sub, err, false)
			}
			return
		}
	}
}

// teardown unsubscribes sub if it is still the current subscription.
func (s *Session) teardown(sub *subscription, cause error, completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != sub {
		return
	}
	if cause != nil {
		s.metrics.IncSessionFailed()
		s.logger.Error("session failed; unsubscribing", map[string]any{"error": cause.Error()})
	}
	s.setOutcome(cause, completed)
	if err := s.unsubscribeLocked(); err != nil {
		s.logger.Error("unsubscribe after failure", map[string]any{"error": err.Error()})
	}
}

// Unsubscribe cancels both loops, waits for them to exit and closes the
// transport. Safe to call in any state and more than once. Must not be
// called from a handler callback.
func (s *Session) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribeLocked()
}

// RequestUnsubscribe unsubscribes asynchronously. Safe from handler callbacks.
func (s *Session) RequestUnsubscribe() {
	go func() {
		if err := s.Unsubscribe(); err != nil {
			s.logger.Error("requested unsubscribe failed", map[string]any{"error": err.Error()})
		}
	}()
}

func (s *Session) unsubscribeLocked() error {
	sub := s.sub
	if sub == nil {
		return nil
	}
	s.sub = nil
	s.current.Store(nil)

	sub.cancel()
	closeErr := s.closeProducer()
	<-sub.engine.Done()
	<-sub.producerDone

	qs := sub.engine.QueueStats()
	dropped := make(map[string]int64, len(qs.DroppedByType))
	for k, v := range qs.DroppedByType {
		dropped[k.String()] = v
	}
	s.metrics.AbsorbQueueStats(qs.Pushed, qs.Dropped, qs.Blocked, int64(qs.HighWater), dropped)
	s.metrics.IncSessionClosed()

	s.logger.Info("session unsubscribed", map[string]any{
		"pushed":  qs.Pushed,
		"dropped": qs.Dropped,
	})
	s.transition(types.SessionUnsubscribed)
	close(sub.done)

	if closeErr != nil {
		return fmt.Errorf("could not unsubscribe from session of type %s: %w", s.cfg.Meta.Transport, closeErr)
	}
	return nil
}

func (s *Session) closeProducer() error {
	if c, ok := s.cfg.Producer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Close unsubscribes and makes the session unusable.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.unsubscribeLocked()
}

func (s *Session) transition(state types.SessionState) {
	s.state.Store(int32(state))
	notify := func() { s.cfg.Handler.OnStateChanged(state) }
	if s.cfg.Marshal != nil {
		s.cfg.Marshal(notify)
		return
	}
	notify()
}

// State returns the current state.
func (s *Session) State() types.SessionState {
	return types.SessionState(s.state.Load())
}

// Done returns a channel closed when the current (or most recent)
// subscription has been torn down. Before the first Subscribe it is closed.
func (s *Session) Done() <-chan struct{} {
	s.outcomeMu.Lock()
	defer s.outcomeMu.Unlock()
	return s.done
}

func (s *Session) setOutcome(err error, completed bool) {
	s.outcomeMu.Lock()
	s.err = err
	s.completed = completed
	s.outcomeMu.Unlock()
}

// Err returns the fatal error that ended the most recent subscription,
// or nil if it ended normally or is still running.
func (s *Session) Err() error {
	s.outcomeMu.Lock()
	defer s.outcomeMu.Unlock()
	return s.err
}

// Completed reports whether the most recent subscription ended because a
// backtest completed.
func (s *Session) Completed() bool {
	s.outcomeMu.Lock()
	defer s.outcomeMu.Unlock()
	return s.completed
}

// Meta returns the session metadata.
func (s *Session) Meta() *types.SessionMeta {
	return s.cfg.Meta
}

// Result returns the running aggregate while subscribed, or a fresh empty
// result otherwise. Only safe to read from handler callbacks.
func (s *Session) Result() *result.Result {
	sub := s.current.Load()
	if sub == nil {
		return result.New()
	}
	return sub.engine.Result()
}
