package app

import (
	"context"
	"time"
)

// refresher is the part of the engine the auto-refresh loop drives.
type refresher interface {
	LoadNewer()
}

// StartRefresher asks for newer tweets every interval until ctx is cancelled.
// A non-positive interval disables it. It returns immediately.
func StartRefresher(ctx context.Context, target refresher, interval time.Duration) {
	if interval <= 0 || target == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				target.LoadNewer()
			}
		}
	}()
}
