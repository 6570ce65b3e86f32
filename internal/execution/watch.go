package execution

import (
	"context"
	"time"

	"github.com/unclebandit/mica-backend/internal/model"
)

// Watch streams the campaign's schedule to an observer. It polls every
// interval and also wakes early when b signals a change. Polling continues
// whether or not signals arrive. Failed reads are skipped until the next
// tick. The channel closes when ctx is done.
func Watch(ctx context.Context, store Store, campaignID string, interval time.Duration, b *Broadcaster) <-chan []model.ScheduleEntry {
	out := make(chan []model.ScheduleEntry)
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var signal <-chan struct{}
	cancel := func() {}
	if b != nil {
		signal, cancel = b.Subscribe(campaignID)
	}

	go func() {
		defer close(out)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if entries, err := store.ReadEntries(ctx, campaignID); err == nil {
				select {
				case out <- entries:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-signal:
			}
		}
	}()
	return out
}
