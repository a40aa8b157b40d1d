package repository

import "github.com/uara-ai/healthscore/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithCapacityHint pre-sizes the per-user index.
func WithCapacityHint(users int) Option {
	return func(s *MemoryStore) {
		if users > 0 {
			s.byUser = make(map[string][]model.Snapshot, users)
		}
	}
}

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*SQLStore)

// WithMaxOpenConns caps the connection pool. SQLite stores default to one
// connection so writers serialize instead of failing with SQLITE_BUSY.
func WithMaxOpenConns(n int) SQLOption {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
