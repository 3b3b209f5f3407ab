// Package watch emulates push notifications by re-reading a source on a
// fixed interval and reporting only the items that were not seen before.
package watch

import (
	"sync"
	"time"

	"github.com/custompc-tech/storefront/backend/internal/clock"
)

// Default poll intervals.
const (
	MessageInterval = 2 * time.Second
	SessionInterval = 3 * time.Second
)

// CancelFunc stops a subscription. Calling it more than once is a no-op.
type CancelFunc func()

// PollingWatcher runs subscriptions against an injectable clock.
type PollingWatcher struct {
	clock clock.Clock
}

// NewPollingWatcher creates a watcher driven by c.
func NewPollingWatcher(c clock.Clock) *PollingWatcher {
	if c == nil {
		c = clock.Real()
	}
	return &PollingWatcher{clock: c}
}

// Subscribe snapshots the ids returned by read, then on every tick calls
// onChange with the items whose id was not in the snapshot, in read order.
// Removals and edits are never reported. Each subscription keeps its own
// snapshot. Callbacks run on the subscription goroutine.
func Subscribe[T any](w *PollingWatcher, interval time.Duration, read func() []T, id func(T) string, onChange func([]T)) CancelFunc {
	seen := make(map[string]struct{})
	for _, item := range read() {
		seen[id(item)] = struct{}{}
	}

	return w.run(interval, func() {
		var fresh []T
		for _, item := range read() {
			key := id(item)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fresh = append(fresh, item)
		}
		if len(fresh) > 0 {
			onChange(fresh)
		}
	})
}

// Every calls fn on each tick until cancelled.
func (w *PollingWatcher) Every(interval time.Duration, fn func()) CancelFunc {
	return w.run(interval, fn)
}

func (w *PollingWatcher) run(interval time.Duration, tick func()) CancelFunc {
	ticker := w.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C():
				select {
				case <-done:
					return
				default:
				}
				tick()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
