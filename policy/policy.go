// Package policy defines how the packet queue behaves when the consumer
// falls behind the producer.
//
// Three modes are supported:
//   - unbounded: the queue grows without limit (default)
//   - block: the queue holds at most Capacity packets and the producer
//     blocks until there is room; nothing is ever dropped
//   - drop_droppable: like block, but when full the oldest queued
//     droppable packet (Log, Debug) is evicted to make room. Results,
//     orders and status packets are never dropped; if no droppable packet
//     is queued the producer blocks.
package policy

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/pithecene-io/sextant/types"
)

// Mode selects the overflow behavior.
type Mode string

const (
	// ModeUnbounded never blocks and never drops.
	ModeUnbounded Mode = "unbounded"
	// ModeBlock blocks the producer when the queue is full.
	ModeBlock Mode = "block"
	// ModeDropDroppable evicts the oldest droppable packet when full.
	ModeDropDroppable Mode = "drop_droppable"
)

// DefaultCapacity is used for bounded modes when Capacity is zero.
const DefaultCapacity = 4096

// ErrInvalidMode is returned for an unknown mode.
var ErrInvalidMode = errors.New("invalid queue policy")

// ErrInvalidCapacity is returned for a negative capacity.
var ErrInvalidCapacity = errors.New("queue capacity must not be negative")

// Config configures a queue.
type Config struct {
	// Mode is the overflow behavior. Empty means ModeUnbounded.
	Mode Mode
	// Capacity bounds the queue in bounded modes.
	// Zero means DefaultCapacity. Ignored by ModeUnbounded.
	Capacity int
}

// DefaultConfig returns the unbounded configuration.
func DefaultConfig() Config {
	return Config{Mode: ModeUnbounded}
}

// ParseMode parses a mode name, case-insensitively. Empty yields ModeUnbounded.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeUnbounded:
		return ModeUnbounded, nil
	case ModeBlock:
		return ModeBlock, nil
	case ModeDropDroppable:
		return ModeDropDroppable, nil
	default:
		return "", fmt.Errorf("%w: %q (must be unbounded, block, or drop_droppable)", ErrInvalidMode, s)
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Capacity < 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// Bounded reports whether the queue has a capacity limit.
func (c Config) Bounded() bool {
	m, _ := ParseMode(string(c.Mode))
	return m != ModeUnbounded
}

// EffectiveCapacity returns the capacity limit, or 0 if unbounded.
func (c Config) EffectiveCapacity() int {
	if !c.Bounded() {
		return 0
	}
	if c.Capacity == 0 {
		return DefaultCapacity
	}
	return c.Capacity
}

// MayDrop reports whether this configuration may evict packets.
func (c Config) MayDrop() bool {
	m, _ := ParseMode(string(c.Mode))
	return m == ModeDropDroppable
}

// droppableTypes are the packet kinds whose loss does not desynchronize
// the result aggregate.
var droppableTypes = map[types.PacketType]bool{
	types.PacketLog:   true,
	types.PacketDebug: true,
}

// IsDroppable returns true if packets of this kind may be evicted.
func IsDroppable(kind types.PacketType) bool {
	return droppableTypes[kind]
}

// DroppableTypes returns the set of droppable kinds.
func DroppableTypes() map[types.PacketType]bool {
	return maps.Clone(droppableTypes)
}
