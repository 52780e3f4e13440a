package capture

import "sync"

// Subscription is an unbounded, in-order frame queue for one consumer.
type Subscription struct {
	src *Source
	c   chan Frame

	mu     sync.Mutex
	queue  []Frame
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscription(src *Source) *Subscription {
	sub := &Subscription{
		src:    src,
		c:      make(chan Frame),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub
}

// C delivers frames in capture order. It is closed by Close.
func (s *Subscription) C() <-chan Frame { return s.c }

// Close ends the subscription. Queued frames are dropped.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.src != nil {
			s.src.unsubscribe(s)
		}
	})
}

func (s *Subscription) push(f Frame) {
	s.mu.Lock()
	s.queue = append(s.queue, f)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.c)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		f := s.queue[0]
		s.queue[0] = Frame{}
		s.queue = s.queue[1:]
		s.mu.Unlock()
		select {
		case s.c <- f:
		case <-s.done:
			return
		}
	}
}
