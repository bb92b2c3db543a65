package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/learnmate/learnmate/core"
)

// RunSweeper removes expired sessions every interval until ctx is done.
func RunSweeper(ctx context.Context, store SessionStore, interval time.Duration, logger core.Logger) {
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
			n, err := store.SweepExpired(ctx)
			if err != nil {
				logger.Error(fmt.Sprintf("sweeping expired sessions: %v", err), err)
				continue
			}
			if n > 0 {
				logger.Debug(fmt.Sprintf("swept %d expired sessions", n))
			}
		}
	}
}
