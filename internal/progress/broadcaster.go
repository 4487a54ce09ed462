// Package progress fans live job progress out to zero or more subscribers.
// Publishing is non-blocking: a slow subscriber drops events instead of
// stalling a worker. Late subscribers receive the current snapshot plus
// future events, not history.
package progress

import "sync"

// Milestone messages emitted at phase boundaries.
const (
	MessageScoring    = "Scoring submissions..."
	MessageFinalizing = "Assembling results..."
	MessageCancelled  = "Cancellation requested, finishing in-flight work..."
)

// Update is one progress tuple. Completed never decreases for a given job.
type Update struct {
	Status    string `json:"status"`
	Completed int    `json:"completed_count"`
	Total     int    `json:"total_count"`
	Message   string `json:"message"`
}

// subscriberBuffer sizes each subscriber channel. Bursts beyond this are
// dropped for that subscriber; the snapshot always reflects the latest state.
const subscriberBuffer = 16

// Broadcaster is a one-job progress fan-out.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Update
	nextID int
	last   Update
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Update)}
}

// Publish records the update as the current snapshot and offers it to every
// subscriber without blocking.
func (b *Broadcaster) Publish(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.last = u
	for _, ch := range b.subs {
		select {
		case ch <- u:
		default:
			// Subscriber is not keeping up; drop rather than block a worker.
		}
	}
}

// Subscribe registers a new subscriber. The returned channel first carries the
// current snapshot, then future events. The cancel function is always safe to
// call and has no effect on the job.
func (b *Broadcaster) Subscribe() (<-chan Update, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Update, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	// Seed with the current snapshot so a late viewer is not blank.
	if b.last != (Update{}) {
		ch <- b.last
	}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Snapshot returns the most recent update for polling viewers.
func (b *Broadcaster) Snapshot() Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Close publishes nothing further and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
