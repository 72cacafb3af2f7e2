package clock

import (
	"context"
	"time"
)

// Updater is the part of Engine a timing driver needs.
type Updater interface {
	Update()
}

// Drive calls u.Update every interval until ctx is done.
func Drive(ctx context.Context, u Updater, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			u.Update()
		}
	}
}
