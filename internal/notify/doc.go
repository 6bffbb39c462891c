// Package notify maintains the real-time notification socket to an
// identity host.
//
// The package implements:
//   - Manager: connection state machine shared by every subscriber of one transport kind
//   - Registry: ordered fan-out of notifications and connection events
//   - LocalAuth / PeerAuth: how each transport kind reaches its socket
//   - GorillaDialer: gorilla/websocket backed Dialer
//
// Lifecycle:
//
//	Disconnected -> Connecting -> AwaitingHandshake -> Live
//	Live -> Reconnecting -> Connecting (socket closed, heartbeat timeout)
//	any -> Disconnecting -> Disconnected (last Unsubscribe, Disconnect)
//
// Every close of a socket while subscribers remain leads to Reconnecting.
// Only an explicit teardown clears the subscriber list.
package notify
