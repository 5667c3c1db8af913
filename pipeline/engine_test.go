package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/sextant/metrics"
	"github.com/pithecene-io/sextant/policy"
	"github.com/pithecene-io/sextant/protocol"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

// recorder is a Handler that records every callback in order.
type recorder struct {
	mu      sync.Mutex
	events  []string
	results []result.Context
	failOn  string
	panicOn string
}

func (r *recorder) add(event string) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	if r.panicOn != "" && event == r.panicOn {
		panic("boom")
	}
	if r.failOn != "" && event == r.failOn {
		return errors.New("handler failed")
	}
	return nil
}

func (r *recorder) OnResult(ctx result.Context) error {
	r.mu.Lock()
	r.results = append(r.results, ctx)
	r.mu.Unlock()
	return r.add(fmt.Sprintf("result:%v", ctx.Progress))
}

func (r *recorder) OnLog(message string, kind types.LogKind) error {
	return r.add(kind.String() + ":" + message)
}

func (r *recorder) OnOrderEvent(p *protocol.OrderEventPacket) error {
	return r.add(fmt.Sprintf("order:%d", p.Event.OrderID))
}

func (r *recorder) OnAlgorithmStatus(p *protocol.AlgorithmStatusPacket) error {
	return r.add("status:" + p.Status.String())
}

func (r *recorder) OnStateChanged(types.SessionState) {}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestEngine(t *testing.T, h Handler, closeAfterCompleted bool) *Engine {
	t.Helper()
	e, err := NewEngine(Config{
		Name:                "test",
		Handler:             h,
		CloseAfterCompleted: closeAfterCompleted,
		Collector:           metrics.NewCollector("unbounded", "test", "", "", "test"),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func feed(t *testing.T, e *Engine, payload string) bool {
	t.Helper()
	handled, err := e.FeedAny(t.Context(), []byte(payload))
	if err != nil {
		t.Fatalf("Feed(%s): %v", payload, err)
	}
	return handled
}

func drain(t *testing.T, e *Engine) error {
	t.Helper()
	e.Close()
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(t.Context()) }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestEngine_StatisticsLatestWins(t *testing.T) {
	h := &recorder{}
	e := newTestEngine(t, h, false)

	feed(t, e, `{"eType":"LiveResult","oResults":{"Statistics":{"Sharpe":"1.2"}}}`)
	feed(t, e, `{"eType":"LiveResult","oResults":{"Statistics":{"Sharpe":"1.4"}}}`)

	if err := drain(t, e); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := e.Result().Statistics["Sharpe"]; got != "1.4" {
		t.Errorf("Sharpe = %q, want 1.4", got)
	}
	if e.Result().ResultType != result.ResultLive {
		t.Errorf("ResultType = %v, want Live", e.Result().ResultType)
	}
	if len(h.results) != 2 || h.results[1].Name != "test" || h.results[1].Completed() {
		t.Errorf("published contexts = %+v", h.results)
	}
}

func TestEngine_UnknownKindNotHandled(t *testing.T) {
	h := &recorder{}
	e := newTestEngine(t, h, false)

	if feed(t, e, `{"eType":"FutureKind","whatever":1}`) {
		t.Error("unknown kind reported as handled")
	}
	if feed(t, e, `{"sChannel":"no-kind"}`) {
		t.Error("packet without kind reported as handled")
	}
	if err := drain(t, e); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.snapshot()) != 0 {
		t.Errorf("handler invoked for unknown kind: %v", h.snapshot())
	}
	r := e.Result()
	if len(r.Charts) != 0 || len(r.Statistics) != 0 {
		t.Error("aggregate changed by unknown packet")
	}
	if s := e.metrics.Snapshot(); s.PacketsUnhandled != 2 {
		t.Errorf("PacketsUnhandled = %d, want 2", s.PacketsUnhandled)
	}
}

func TestEngine_NodePacketsNotHandled(t *testing.T) {
	e := newTestEngine(t, &recorder{}, false)
	for _, kind := range []types.PacketType{types.PacketLiveNode, types.PacketAlgorithmNode} {
		p, ok, err := protocol.Decode([]byte(`{"sDeployID":"L-1"}`), kind)
		if err != nil || !ok {
			t.Fatalf("Decode(%v): %v %v", kind, ok, err)
		}
		handled, err := e.Dispatch(p)
		if handled || err != nil {
			t.Errorf("Dispatch(%v) = %v, %v; want false, nil", kind, handled, err)
		}
	}
}

func TestEngine_DecodeErrorReturnedToProducer(t *testing.T) {
	e := newTestEngine(t, &recorder{}, false)

	handled, err := e.Feed(t.Context(), []byte(`{"oResults":{"Orders":[1]}}`), types.PacketBacktestResult)
	if handled {
		t.Error("malformed packet reported as handled")
	}
	if !IsDecodeError(err) || !protocol.IsDecodeError(err) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if e.queue.Len() != 0 {
		t.Error("malformed packet was enqueued")
	}
}

func TestEngine_DispatchTable(t *testing.T) {
	h := &recorder{}
	e := newTestEngine(t, h, false)

	feed(t, e, `{"eType":"AlgorithmStatus","eStatus":"Running"}`)
	feed(t, e, `{"eType":"Log","sMessage":"hello"}`)
	feed(t, e, `{"eType":"Debug","sMessage":"dbg"}`)
	feed(t, e, `{"eType":"HandledError","sMessage":"oops"}`)
	feed(t, e, `{"eType":"OrderEvent","oOrderEvent":{"OrderId":3,"Status":"Submitted"}}`)
	feed(t, e, `{"eType":"BacktestResult","dProgress":0.5,"oResults":{}}`)

	if err := drain(t, e); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"status:Running", "log:hello", "debug:dbg", "error:oops", "order:3", "result:0.5"}
	got := h.snapshot()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	if len(e.Result().Orders) != 0 {
		t.Error("order events must not be merged into the result")
	}
}

func TestEngine_FIFOUnderBurst(t *testing.T) {
	h := &recorder{}
	e := newTestEngine(t, h, false)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	const n = 2000
	for i := 0; i < n; i++ {
		if err := e.Push(ctx, protocol.NewLogPacket(types.PacketLog, fmt.Sprint(i))); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	e.Close()

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain")
	}

	got := h.snapshot()
	if len(got) != n {
		t.Fatalf("dispatched %d packets, want %d", len(got), n)
	}
	for i, ev := range got {
		if ev != fmt.Sprintf("log:%d", i) {
			t.Fatalf("event %d = %q: packets reordered", i, ev)
		}
	}
}

func TestEngine_CancellationLiveness(t *testing.T) {
	e := newTestEngine(t, &recorder{}, false)
	ctx, cancel := context.WithCancel(t.Context())

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	cancel()

	select {
	case err := <-runErr:
		if !IsCanceledError(err) {
			t.Errorf("Run error = %v, want canceled", err)
		}
		if time.Since(start) > time.Second {
			t.Errorf("consumer took %v to exit", time.Since(start))
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not exit within 1s of cancellation")
	}

	select {
	case <-e.Done():
	default:
		t.Error("Done not closed after Run returned")
	}
	if err := e.Run(t.Context()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}
}

// slowLogs counts OnLog calls, sleeping in each one.
type slowLogs struct {
	HandlerFuncs
	delay time.Duration
	calls atomic.Int64
}

func newSlowLogs(delay time.Duration) *slowLogs {
	h := &slowLogs{delay: delay}
	h.Log = func(string, types.LogKind) error {
		h.calls.Add(1)
		time.Sleep(h.delay)
		return nil
	}
	return h
}

func TestEngine_CancelStopsBacklogDispatch(t *testing.T) {
	h := newSlowLogs(5 * time.Millisecond)
	e := newTestEngine(t, h, false)

	const n = 400
	for i := range n {
		feed(t, e, fmt.Sprintf(`{"eType":"Log","sMessage":"m%d"}`, i))
	}

	ctx, cancel := context.WithCancel(t.Context())
	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	cancel()
	atCancel := h.calls.Load()

	select {
	case err := <-runErr:
		if !IsCanceledError(err) {
			t.Errorf("Run error = %v, want canceled", err)
		}
		if waited := time.Since(start); waited > 250*time.Millisecond {
			t.Errorf("consumer took %v to exit with a backlog", waited)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer kept draining the backlog after cancellation")
	}

	// The dispatch in flight at cancel may finish; nothing after it starts.
	if extra := h.calls.Load() - atCancel; extra > 1 {
		t.Errorf("%d dispatches after cancel, want at most 1", extra)
	}
	if left := e.QueueStats().Depth; left == 0 {
		t.Error("backlog fully drained despite cancellation")
	}
}

func TestEngine_CompletedBacktestAutoClose(t *testing.T) {
	h := &recorder{}
	e := newTestEngine(t, h, true)

	feed(t, e, `{"eType":"BacktestResult","dProgress":0.5}`)
	feed(t, e, `{"eType":"BacktestResult","dProgress":1}`)
	feed(t, e, `{"eType":"Log","sMessage":"after"}`)

	if err := drain(t, e); !errors.Is(err, ErrCompleted) {
		t.Fatalf("Run = %v, want ErrCompleted", err)
	}
	got := h.snapshot()
	if len(got) != 2 || got[1] != "result:1" {
		t.Errorf("events = %v; completed result must be published before closing", got)
	}
}

func TestEngine_CompletedWithoutAutoClose(t *testing.T) {
	h := &recorder{}
	e := newTestEngine(t, h, false)

	feed(t, e, `{"eType":"BacktestResult","dProgress":1}`)
	feed(t, e, `{"eType":"Log","sMessage":"after"}`)

	if err := drain(t, e); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got := h.snapshot(); len(got) != 2 {
		t.Errorf("events = %v", got)
	}
}

func TestEngine_HandlerErrorIsFatal(t *testing.T) {
	h := &recorder{failOn: "log:bad"}
	e := newTestEngine(t, h, false)

	feed(t, e, `{"eType":"Log","sMessage":"bad"}`)
	feed(t, e, `{"eType":"Log","sMessage":"never"}`)

	err := drain(t, e)
	if !IsHandlerError(err) {
		t.Fatalf("Run = %v, want handler error", err)
	}
	if got := h.snapshot(); len(got) != 1 {
		t.Errorf("consumer kept dispatching after failure: %v", got)
	}
}

func TestEngine_HandlerPanicIsFatal(t *testing.T) {
	h := &recorder{panicOn: "debug:x"}
	e := newTestEngine(t, h, false)

	feed(t, e, `{"eType":"Debug","sMessage":"x"}`)

	if err := drain(t, e); !IsHandlerError(err) {
		t.Fatalf("Run = %v, want handler error", err)
	}
}

func TestEngine_MarshalWrapsCallbacks(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	h := &recorder{}
	e, err := NewEngine(Config{
		Handler: h,
		Marshal: func(fn func()) {
			mu.Lock()
			calls++
			mu.Unlock()
			fn()
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	feed(t, e, `{"eType":"Log","sMessage":"a"}`)
	feed(t, e, `{"eType":"LiveResult"}`)
	if err := drain(t, e); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("Marshal called %d times, want 2", calls)
	}
}

func TestEngine_TapSeesAcceptedPayloads(t *testing.T) {
	e := newTestEngine(t, &recorder{}, false)
	var kinds []types.PacketType
	e.Tap(func(_ []byte, kind types.PacketType) { kinds = append(kinds, kind) })

	feed(t, e, `{"eType":"Log","sMessage":"a"}`)
	feed(t, e, `{"eType":"Unheard"}`)

	if len(kinds) != 1 || kinds[0] != types.PacketLog {
		t.Errorf("tapped kinds = %v", kinds)
	}
}

func TestNewEngine_Validation(t *testing.T) {
	if _, err := NewEngine(Config{}); err == nil {
		t.Error("expected error without handler")
	}
	_, err := NewEngine(Config{Handler: HandlerFuncs{}, Queue: policy.Config{Mode: "nope"}})
	if !errors.Is(err, policy.ErrInvalidMode) {
		t.Errorf("expected invalid mode, got %v", err)
	}
}

func TestMultiHandler_CallsAll(t *testing.T) {
	a := &recorder{failOn: "log:x"}
	b := &recorder{}
	m := MultiHandler{a, b}

	if err := m.OnLog("x", types.LogKindLog); err == nil {
		t.Error("expected joined error")
	}
	if len(b.snapshot()) != 1 {
		t.Error("second handler not called after first failed")
	}
}
