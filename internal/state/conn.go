package state

// ConnState is the engine's connection lifecycle state as published to
// subscribers.
type ConnState int

const (
	// Disconnected means no connection exists and none is being attempted.
	Disconnected ConnState = iota
	// Connecting means a websocket dial is in flight.
	Connecting
	// Authenticating means the socket is open and IDN is pending.
	Authenticating
	// Online means the session is identified and commands flow.
	Online
	// Reconnecting means the connection dropped and a retry is scheduled.
	Reconnecting
	// Fatal means the server rejected the session permanently; no retry
	// will happen.
	Fatal
)

func (c ConnState) String() string {
	switch c {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Online:
		return "online"
	case Reconnecting:
		return "reconnecting"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}
