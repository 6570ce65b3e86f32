package execution

import "sync"

// Broadcaster wakes watchers when a campaign's schedule changes.
// Delivery is best effort: a watcher that is not ready misses the signal
// and catches up on its next poll.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe returns a signal channel and a cancel func that must be called.
func (b *Broadcaster) Subscribe(campaignID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.subs[campaignID] == nil {
		b.subs[campaignID] = make(map[chan struct{}]struct{})
	}
	b.subs[campaignID][ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs[campaignID], ch)
		if len(b.subs[campaignID]) == 0 {
			delete(b.subs, campaignID)
		}
		b.mu.Unlock()
	}
}

func (b *Broadcaster) Notify(campaignID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[campaignID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
