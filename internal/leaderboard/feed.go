package leaderboard

import "sync"

const feedBuffer = 16

// Feed fans newly submitted entries out to subscribers. Slow subscribers miss
// entries rather than blocking publishers.
type Feed struct {
	mu   sync.Mutex
	subs map[chan Entry]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Entry]struct{})}
}

// Subscribe returns a channel of new entries and a function that
// unsubscribes and closes it.
func (f *Feed) Subscribe() (<-chan Entry, func()) {
	ch := make(chan Entry, feedBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber with buffer space.
func (f *Feed) Publish(e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers reports how many subscribers are attached.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
