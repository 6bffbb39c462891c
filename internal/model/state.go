package model

import "fmt"

// State is the lifecycle state of a notification connection.
type State uint8

const (
	StateDisconnected      State = 0
	StateConnecting        State = 1
	StateAwaitingHandshake State = 2
	StateLive              State = 3
	StateReconnecting      State = 4
	StateDisconnecting     State = 5
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaitingHandshake"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so states render by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for v := StateDisconnected; v <= StateDisconnecting; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
