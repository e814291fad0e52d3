package monitor

import "sync"

// broadcaster is a SinkCallback that fans each published snapshot out to
// every currently subscribed SSE client.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan []byte]struct{})}
}

// Handle implements SinkCallback.
func (b *broadcaster) Handle(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- data:
		default:
			// Slow subscriber: drop this update rather than block the
			// poll loop.
		}
	}
	return nil
}

// Subscribe registers a new SSE client, returning its delivery channel
// and an unsubscribe function.
func (b *broadcaster) Subscribe() (ch chan []byte, unsubscribe func()) {
	ch = make(chan []byte, 4)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}
}
