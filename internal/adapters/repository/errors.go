package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound            = errors.New("snapshot not found")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrConcurrentWriteLost = errors.New("daily snapshot already written")
)
