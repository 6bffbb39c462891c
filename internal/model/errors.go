package model

import "errors"

var (
	// ErrAlreadyConnected is returned when a connect is attempted while a socket handle already exists.
	ErrAlreadyConnected = errors.New("socket already connected")

	// ErrNoActiveSocket is returned when a command is sent without a socket.
	ErrNoActiveSocket = errors.New("no active websocket")

	// ErrOffline is returned when a connect is refused because the runtime reports itself offline.
	ErrOffline = errors.New("runtime is offline")

	// ErrDriveMismatch is returned when a subscriber requests a drive set different
	// from the one negotiated by the existing connection.
	ErrDriveMismatch = errors.New("drive set does not match the negotiated drive set")

	// ErrDisconnected is returned to pending subscribers when the connection is torn down.
	ErrDisconnected = errors.New("connection torn down")

	// ErrSubscriberNotComparable is returned when a subscriber's dynamic type
	// cannot be compared with ==, so it has no usable identity.
	ErrSubscriberNotComparable = errors.New("subscriber type is not comparable")

	// ErrHeartbeatTimeout is used as the reconnect cause when no pong arrived in time.
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")

	// ErrPeerTokenExchange is returned when the peer token exchange fails.
	ErrPeerTokenExchange = errors.New("peer token exchange failed")

	// ErrInvalidFrame is returned when an inbound frame cannot be decoded.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrNotificationNotFound is returned when a journal entry is not found.
	ErrNotificationNotFound = errors.New("notification not found")
)
