package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/auth"
)

// sweepSessions deletes expired sessions every interval until ctx is done.
// Failures are logged and retried on the next tick.
func sweepSessions(ctx context.Context, lg *zap.Logger, sessions auth.SessionSweeper, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					lg.Warn("Session sweep failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				lg.Debug("Expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
