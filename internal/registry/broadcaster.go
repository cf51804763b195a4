package registry

import "sync"

// subscriberChanSize bounds how much unconsumed output a slow Stream
// Transport can accumulate before broadcast starts dropping for it. Ported
// from the blaxel sandbox terminal session manager's Subscriber pattern.
const subscriberChanSize = 64

// Subscriber is a single attached Stream Transport's view of a session's
// output. Dropped chunks for a slow consumer never affect other
// subscribers or the scrollback.
type Subscriber struct {
	ch   chan []byte
	done chan struct{}
}

// Chan returns the channel to read forwarded output from.
func (s *Subscriber) Chan() <-chan []byte { return s.ch }

// broadcaster fans PTY output out to zero or more subscribers without ever
// blocking the pump that owns the scrollback.
type broadcaster struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new subscriber and returns it.
func (b *broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{
		ch:   make(chan []byte, subscriberChanSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe detaches sub. Safe to call more than once.
func (b *broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	select {
	case <-sub.done:
	default:
		close(sub.done)
	}
}

// broadcast fans data out to every live subscriber, dropping it for any
// subscriber whose channel is already full rather than stalling.
func (b *broadcaster) broadcast(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.ch <- data:
		default:
			// slow consumer: drop for this subscriber only, never for the
			// scrollback or other subscribers.
		}
	}
}

// closeAll unsubscribes every current subscriber, used on session kill /
// PTY EOF so attached transports observe the session is gone.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*Subscriber]struct{})
	b.mu.Unlock()
	for _, sub := range subs {
		select {
		case <-sub.done:
		default:
			close(sub.done)
		}
	}
}

// Done returns a channel closed when the subscriber is unsubscribed or the
// session that owned it is gone.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// subscriberCount reports how many subscribers are currently attached.
func (b *broadcaster) subscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
