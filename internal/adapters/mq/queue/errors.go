package queue

import "errors"

// Sentinel errors for queue consumers.
var (
	// ErrFull is returned by publishers that could not queue a signal.
	ErrFull = errors.New("invalidation queue full")

	// ErrClosed is returned once the queue no longer accepts signals.
	ErrClosed = errors.New("invalidation queue closed")
)
