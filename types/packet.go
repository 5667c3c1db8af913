package types

import (
	"fmt"
	"strconv"
	"strings"
)

// PacketType is the wire discriminant of a packet (the eType field).
// Values are the engine's wire ordinals so integer-encoded eType fields
// decode without translation.
type PacketType int

// PacketUnknown is assigned to any eType this client does not recognize.
const PacketUnknown PacketType = -1

// Wire ordinals. Order matters; do not reorder.
const (
	PacketNone PacketType = iota
	PacketAlgorithmNode
	PacketAutocompleteWork
	PacketAutocompleteResult
	PacketBacktestNode
	PacketBacktestResult
	PacketBacktestWork
	PacketLiveNode
	PacketLiveResult
	PacketLiveWork
	PacketSecurityTypes
	PacketBacktestError
	PacketAlgorithmStatus
	PacketBuildWork
	PacketBuildSuccess
	PacketBuildError
	PacketRuntimeError
	PacketHandledError
	PacketLog
	PacketDebug
	PacketOrderEvent
	PacketSuccess
	PacketHistory
	PacketCommandResult
	PacketGitHubHook
	PacketDocumentationResult
	PacketDocumentation
	PacketSystemDebug
	PacketAlphaResult
	PacketAlphaWork
	PacketAlphaNode
	PacketRegressionAlgorithm
	PacketAlphaHeartbeat
	PacketDebuggingStatus
	PacketOptimizationNode
	PacketOptimizationEstimate
	PacketOptimizationStatus
	PacketOptimizationResult
	PacketAggregated
)

var packetTypeNames = []string{
	"None",
	"AlgorithmNode",
	"AutocompleteWork",
	"AutocompleteResult",
	"BacktestNode",
	"BacktestResult",
	"BacktestWork",
	"LiveNode",
	"LiveResult",
	"LiveWork",
	"SecurityTypes",
	"BacktestError",
	"AlgorithmStatus",
	"BuildWork",
	"BuildSuccess",
	"BuildError",
	"RuntimeError",
	"HandledError",
	"Log",
	"Debug",
	"OrderEvent",
	"Success",
	"History",
	"CommandResult",
	"GitHubHook",
	"DocumentationResult",
	"Documentation",
	"SystemDebug",
	"AlphaResult",
	"AlphaWork",
	"AlphaNode",
	"RegressionAlgorithm",
	"AlphaHeartbeat",
	"DebuggingStatus",
	"OptimizationNode",
	"OptimizationEstimate",
	"OptimizationStatus",
	"OptimizationResult",
	"Aggregated",
}

// supportedPackets is the set of kinds this client decodes and dispatches.
var supportedPackets = map[PacketType]bool{
	PacketAlgorithmStatus: true,
	PacketLiveNode:        true,
	PacketAlgorithmNode:   true,
	PacketLiveResult:      true,
	PacketBacktestResult:  true,
	PacketOrderEvent:      true,
	PacketLog:             true,
	PacketDebug:           true,
	PacketHandledError:    true,
}

// String returns the wire name, or "Unknown".
func (t PacketType) String() string {
	if t < 0 || int(t) >= len(packetTypeNames) {
		return "Unknown"
	}
	return packetTypeNames[t]
}

// IsSupported reports whether packets of this kind are decoded by this client.
// Every other kind, including ones that exist on the wire, is treated as unknown.
func (t PacketType) IsSupported() bool {
	return supportedPackets[t]
}

// ParsePacketType maps a name (case-insensitive) or decimal ordinal to a
// PacketType. Unrecognized input yields PacketUnknown.
func ParsePacketType(s string) PacketType {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return packetTypeFromOrdinal(n)
	}
	for i, name := range packetTypeNames {
		if strings.EqualFold(name, s) {
			return PacketType(i)
		}
	}
	return PacketUnknown
}

func packetTypeFromOrdinal(n int) PacketType {
	if n < 0 || n >= len(packetTypeNames) {
		return PacketUnknown
	}
	return PacketType(n)
}

// UnmarshalJSON accepts the ordinal or the name. Unknown values decode to
// PacketUnknown rather than failing so newer servers do not break older clients.
func (t *PacketType) UnmarshalJSON(data []byte) error {
	raw, isString, err := enumToken(data)
	if err != nil {
		return fmt.Errorf("eType: %w", err)
	}
	if isString {
		*t = ParsePacketType(raw)
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*t = PacketUnknown
		return nil
	}
	*t = packetTypeFromOrdinal(n)
	return nil
}

// MarshalJSON encodes the wire name.
func (t PacketType) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}
