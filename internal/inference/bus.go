package inference

import (
	"sync"

	"github.com/rs/zerolog"
)

// EventType identifies why the state changed.
type EventType string

const (
	EventState     EventType = "state"
	EventSubmitted EventType = "submitted"
	EventFlush     EventType = "flush"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventAbandoned EventType = "abandoned"
	EventCommitted EventType = "committed"
	EventDiscarded EventType = "discarded"
)

// Event carries a full snapshot taken at the moment of the change.
type Event struct {
	Type     EventType
	Snapshot Snapshot
}

// mustDeliver reports whether subscribers wait on t: the start of a request
// and every event that ends a request or its record. These are never dropped.
func (t EventType) mustDeliver() bool {
	switch t {
	case EventSubmitted, EventCompleted, EventFailed, EventAbandoned, EventCommitted, EventDiscarded:
		return true
	}
	return false
}

// bus fans events out to subscribers. Publishing never blocks. A subscriber
// whose buffer is full misses intermediate events (every event carries a
// full snapshot, so the next one supersedes it); for a mustDeliver event the
// oldest queued event is evicted to make room instead.
type bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	depth int
	log   zerolog.Logger
}

func newBus(log zerolog.Logger) *bus {
	return &bus{subs: make(map[chan Event]struct{}), depth: 256, log: log}
}

func (b *bus) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// publish must be called with the orchestrator lock held so that events are
// delivered in the order the state changed.
func (b *bus) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped, evicted := 0, 0
	for sub := range b.subs {
		if !e.Type.mustDeliver() {
			select {
			case sub <- e:
			default:
				dropped++
			}
			continue
		}
		for sent := false; !sent; {
			select {
			case sub <- e:
				sent = true
			default:
				select {
				case <-sub:
					evicted++
				default:
				}
			}
		}
	}
	if dropped > 0 || evicted > 0 {
		b.log.Debug().Str("event", "bus_dropped").Int("count", dropped).Int("evicted", evicted).Str("type", string(e.Type)).Send()
	}
}
