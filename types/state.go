package types

// SessionState is the life-cycle state of a session.
// Unsubscribed is both the initial and the terminal state.
type SessionState int

const (
	SessionUnsubscribed SessionState = iota
	SessionSubscribed
)

func (s SessionState) String() string {
	switch s {
	case SessionSubscribed:
		return "subscribed"
	default:
		return "unsubscribed"
	}
}

// LogKind classifies a forwarded log packet.
type LogKind int

const (
	LogKindLog LogKind = iota
	LogKindDebug
	LogKindError
)

func (k LogKind) String() string {
	switch k {
	case LogKindDebug:
		return "debug"
	case LogKindError:
		return "error"
	default:
		return "log"
	}
}

// LogKindFor maps a log-carrying packet kind to its LogKind.
// ok is false for kinds that do not carry log messages.
func LogKindFor(t PacketType) (kind LogKind, ok bool) {
	switch t {
	case PacketLog:
		return LogKindLog, true
	case PacketDebug:
		return LogKindDebug, true
	case PacketHandledError:
		return LogKindError, true
	default:
		return 0, false
	}
}
