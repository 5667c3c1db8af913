package pipeline

import (
	"context"
	"sync"

	"github.com/pithecene-io/sextant/policy"
	"github.com/pithecene-io/sextant/protocol"
)

// Queue is a FIFO hand-off between one producer loop and one consumer loop.
//
// Overflow behavior follows its policy.Config. Packets are taken in exactly
// the order they were pushed; an evicted droppable packet is removed without
// reordering the rest. Take and a blocked Push both observe cancellation.
type Queue struct {
	mu       sync.Mutex
	items    []protocol.Packet
	cfg      policy.Config
	capacity int
	closed   bool
	stats    *policy.Recorder

	// ready and room are one-slot wake-up signals; closedCh is closed by Close.
	ready    chan struct{}
	room     chan struct{}
	closedCh chan struct{}
}

// NewQueue creates a queue. cfg must be valid.
func NewQueue(cfg policy.Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Queue{
		cfg:      cfg,
		capacity: cfg.EffectiveCapacity(),
		stats:    policy.NewRecorder(),
		ready:    make(chan struct{}, 1),
		room:     make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}, nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Push appends p. In bounded modes it blocks while the queue is full,
// unless an older droppable packet can be evicted. Returns ctx.Err() if
// ctx ends while blocked, or ErrQueueClosed.
func (q *Queue) Push(ctx context.Context, p protocol.Packet) error {
	blocked := false
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrQueueClosed
		}
		if q.capacity == 0 || len(q.items) < q.capacity || q.evictLocked() {
			q.items = append(q.items, p)
			q.stats.Push(len(q.items))
			hasRoom := q.capacity == 0 || len(q.items) < q.capacity
			q.mu.Unlock()
			signal(q.ready)
			if hasRoom && blocked {
				// Pass the wake-up on to any other waiting producer.
				signal(q.room)
			}
			return nil
		}
		if !blocked {
			q.stats.Block()
			blocked = true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.closedCh:
			return ErrQueueClosed
		case <-q.room:
		}
	}
}

// evictLocked removes the oldest droppable packet if the policy allows it.
// Caller must hold q.mu.
func (q *Queue) evictLocked() bool {
	if !q.cfg.MayDrop() {
		return false
	}
	for i, queued := range q.items {
		if policy.IsDroppable(queued.Kind()) {
			q.stats.Drop(queued.Kind())
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

// Take removes and returns the oldest packet, blocking until one is
// available. After Close, remaining packets are still returned; once the
// queue is drained Take returns ErrQueueClosed. A done ctx wins over queued
// packets: Take returns ctx.Err() and leaves the queue untouched.
func (q *Queue) Take(ctx context.Context) (protocol.Packet, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.mu.Lock()
		if len(q.items) > 0 {
			p := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.stats.Take(len(q.items))
			q.mu.Unlock()
			signal(q.room)
			return p, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.closedCh:
		case <-q.ready:
		}
	}
}

// Close stops the queue from accepting packets and wakes all waiters.
// Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() policy.Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats.Snapshot()
}
