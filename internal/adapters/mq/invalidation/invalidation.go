// Package invalidation announces that a user's health score data changed so
// downstream caches can drop stale entries.
package invalidation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Topics emitted after a snapshot is persisted.
const (
	TopicHealthScores = "health-scores"
	TopicUserProfile  = "user-profile"
)

// DefaultTopics returns the topics emitted for a new snapshot.
func DefaultTopics() []string {
	return []string{TopicHealthScores, TopicUserProfile}
}

// Signal names the topics that changed for a user.
type Signal struct {
	UserID     string    `json:"user_id"`
	SnapshotID string    `json:"snapshot_id"`
	Topics     []string  `json:"topics"`
	At         time.Time `json:"at"`
}

// Publisher delivers invalidation signals.
type Publisher interface {
	Publish(ctx context.Context, sig Signal) error
}

// Multi fans a signal out to every publisher. All publishers are attempted;
// their errors are joined.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, sig Signal) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, sig); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher that holds resources.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if c, ok := p.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published signals in memory.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
	err     error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent publishes return err. A nil err clears it.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, sig Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	sig.Topics = append([]string(nil), sig.Topics...)
	r.signals = append(r.signals, sig)
	return nil
}

// Signals returns a copy of everything published so far.
func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Signal(nil), r.signals...)
}
