package policy

import "github.com/pithecene-io/sextant/types"

// Stats is a point-in-time view of queue activity.
type Stats struct {
	// Pushed is the number of packets accepted by the queue.
	Pushed int64
	// Taken is the number of packets handed to the consumer.
	Taken int64
	// Dropped is the number of packets evicted.
	Dropped int64
	// DroppedByType maps packet kinds to eviction counts.
	DroppedByType map[types.PacketType]int64
	// Blocked is the number of pushes that had to wait for room.
	Blocked int64
	// Depth is the number of packets currently queued.
	Depth int
	// HighWater is the largest Depth observed.
	HighWater int
}

// Recorder accumulates Stats. It has no lock of its own: the owning
// queue calls it only while holding the queue's mutex, which keeps the
// counters consistent with the queue contents.
type Recorder struct {
	stats Stats
}

// NewRecorder creates a recorder.
func NewRecorder() *Recorder {
	return &Recorder{stats: Stats{DroppedByType: make(map[types.PacketType]int64)}}
}

// Push records an accepted packet and the resulting depth.
func (r *Recorder) Push(depth int) {
	r.stats.Pushed++
	r.setDepth(depth)
}

// Take records a packet handed to the consumer.
func (r *Recorder) Take(depth int) {
	r.stats.Taken++
	r.setDepth(depth)
}

// Drop records an evicted packet.
func (r *Recorder) Drop(kind types.PacketType) {
	r.stats.Dropped++
	r.stats.DroppedByType[kind]++
}

// Block records a push that waited for room.
func (r *Recorder) Block() {
	r.stats.Blocked++
}

func (r *Recorder) setDepth(depth int) {
	r.stats.Depth = depth
	if depth > r.stats.HighWater {
		r.stats.HighWater = depth
	}
}

// Snapshot returns a copy of the current stats.
func (r *Recorder) Snapshot() Stats {
	s := r.stats
	s.DroppedByType = make(map[types.PacketType]int64, len(r.stats.DroppedByType))
	for k, v := range r.stats.DroppedByType {
		s.DroppedByType[k] = v
	}
	return s
}
