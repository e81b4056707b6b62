package transport

import "errors"

var (
	// ErrShutdown is returned by Send/Connect once the supervisor has been
	// permanently shut down.
	ErrShutdown = errors.New("transport: shut down")
	// ErrNotConnected is returned by Send when there is no live connection
	// to write to (waiting to reconnect, disconnected, or never connected).
	ErrNotConnected = errors.New("transport: not connected")
	// ErrAlreadyStarted is returned by Connect when called on a supervisor
	// that already has an active run loop.
	ErrAlreadyStarted = errors.New("transport: already connected or connecting")
)
