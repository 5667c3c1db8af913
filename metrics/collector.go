// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters while a session runs. It is a leaf
// package with no internal dependencies. Queue counters are absorbed from
// policy.Stats when the session tears down rather than recorded live,
// avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64
	SessionsClosed    int64
	SessionsFailed    int64
	SessionsCompleted int64

	// Pipeline
	PacketsFed        int64
	PacketsUnhandled  int64
	PacketsDispatched int64
	DecodeErrors      int64
	Merges            int64

	// Queue (absorbed from policy.Stats at teardown)
	QueuePushed    int64
	QueueDropped   int64
	QueueBlocked   int64
	QueueHighWater int64
	DroppedByType  map[string]int64

	// Archive / notifications
	ArchiveWriteSuccess int64
	ArchiveWriteFailure int64
	NotifySuccess       int64
	NotifyFailure       int64

	// Dimensions (informational, set at construction)
	Policy         string
	Transport      string
	StorageBackend string
	SessionID      string
	SessionName    string
}

// Collector accumulates metrics for one session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsClosed    int64
	sessionsFailed    int64
	sessionsCompleted int64

	packetsFed        int64
	packetsUnhandled  int64
	packetsDispatched int64
	decodeErrors      int64
	merges            int64

	queuePushed    int64
	queueDropped   int64
	queueBlocked   int64
	queueHighWater int64
	droppedByType  map[string]int64

	archiveWriteSuccess int64
	archiveWriteFailure int64
	notifySuccess       int64
	notifyFailure       int64

	policy         string
	transport      string
	storageBackend string
	sessionID      string
	sessionName    string
}

// NewCollector creates a Collector with dimension labels.
// storageBackend may be empty when archival is disabled.
func NewCollector(policy, transport, storageBackend, sessionID, sessionName string) *Collector {
	return &Collector{
		droppedByType:  make(map[string]int64),
		policy:         policy,
		transport:      transport,
		storageBackend: storageBackend,
		sessionID:      sessionID,
		sessionName:    sessionName,
	}
}

func (c *Collector) add(counter *int64, n int64) {
	c.mu.Lock()
	*counter += n
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionStarted records a successful subscribe.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStarted, 1)
}

// IncSessionClosed records an unsubscribe, whatever its cause.
func (c *Collector) IncSessionClosed() {
	if c == nil {
		return
	}
	c.add(&c.sessionsClosed, 1)
}

// IncSessionFailed records a teardown caused by a fatal pipeline error.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.add(&c.sessionsFailed, 1)
}

// IncSessionCompleted records an auto-close after a completed backtest.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsCompleted, 1)
}

// --- Pipeline ---

// IncPacketsFed records a payload offered by a transport.
func (c *Collector) IncPacketsFed() {
	if c == nil {
		return
	}
	c.add(&c.packetsFed, 1)
}

// IncPacketsUnhandled records a packet of an unknown or reserved kind.
func (c *Collector) IncPacketsUnhandled() {
	if c == nil {
		return
	}
	c.add(&c.packetsUnhandled, 1)
}

// IncPacketsDispatched records a packet routed to a handler.
func (c *Collector) IncPacketsDispatched() {
	if c == nil {
		return
	}
	c.add(&c.packetsDispatched, 1)
}

// IncDecodeErrors records a malformed payload for a known kind.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.add(&c.decodeErrors, 1)
}

// IncMerges records a result folded into the aggregate.
func (c *Collector) IncMerges() {
	if c == nil {
		return
	}
	c.add(&c.merges, 1)
}

// --- Archive / notifications ---

// IncArchiveWriteSuccess records a successful archive write.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteSuccess, 1)
}

// IncArchiveWriteFailure records a failed archive write.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteFailure, 1)
}

// IncNotifySuccess records a delivered notification.
func (c *Collector) IncNotifySuccess() {
	if c == nil {
		return
	}
	c.add(&c.notifySuccess, 1)
}

// IncNotifyFailure records a notification that exhausted its retries.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.add(&c.notifyFailure, 1)
}

// AbsorbQueueStats adds queue counters from policy.Stats into the collector.
// Called once per subscription at teardown. High water keeps the maximum.
func (c *Collector) AbsorbQueueStats(pushed, dropped, blocked, highWater int64, droppedByType map[string]int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queuePushed += pushed
	c.queueDropped += dropped
	c.queueBlocked += blocked
	if highWater > c.queueHighWater {
		c.queueHighWater = highWater
	}
	for k, v := range droppedByType {
		c.droppedByType[k] += v
	}
}

// Snapshot returns an immutable point-in-time copy of all metrics.
// Returns a zero Snapshot if the collector is nil.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{DroppedByType: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := make(map[string]int64, len(c.droppedByType))
	for k, v := range c.droppedByType {
		dropped[k] = v
	}

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsClosed:    c.sessionsClosed,
		SessionsFailed:    c.sessionsFailed,
		SessionsCompleted: c.sessionsCompleted,

		PacketsFed:        c.packetsFed,
		PacketsUnhandled:  c.packetsUnhandled,
		PacketsDispatched: c.packetsDispatched,
		DecodeErrors:      c.decodeErrors,
		Merges:            c.merges,

		QueuePushed:    c.queuePushed,
		QueueDropped:   c.queueDropped,
		QueueBlocked:   c.queueBlocked,
		QueueHighWater: c.queueHighWater,
		DroppedByType:  dropped,

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,
		NotifySuccess:       c.notifySuccess,
		NotifyFailure:       c.notifyFailure,

		Policy:         c.policy,
		Transport:      c.transport,
		StorageBackend: c.storageBackend,
		SessionID:      c.sessionID,
		SessionName:    c.sessionName,
	}
}
