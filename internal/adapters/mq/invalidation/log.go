package invalidation

import (
	"context"
	"strings"

	"github.com/uara-ai/healthscore/pkg/logger"
)

// LogPublisher writes each signal as a structured log line. It is the
// default when no broker is configured.
type LogPublisher struct {
	logger logger.Logger
}

// NewLogPublisher creates a publisher logging through l.
func NewLogPublisher(l logger.Logger) *LogPublisher {
	if l == nil {
		l = logger.Nop()
	}
	return &LogPublisher{logger: l}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(ctx context.Context, sig Signal) error {
	p.logger.Info(ctx, "cache invalidation",
		logger.String("user_id", sig.UserID),
		logger.String("snapshot_id", sig.SnapshotID),
		logger.String("topics", strings.Join(sig.Topics, ",")))
	return nil
}
