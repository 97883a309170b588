package printer

import "sync"

// StatusStream broadcasts connection status changes. Every value published
// reaches every subscriber in order; a slow subscriber queues instead of
// blocking the publisher. New subscribers only see later values.
type StatusStream struct {
	mu      sync.Mutex
	current bool
	subs    map[*subscriber]struct{}
}

// NewStatusStream creates a stream whose current value is false.
func NewStatusStream() *StatusStream {
	return &StatusStream{subs: make(map[*subscriber]struct{})}
}

// Current returns the last published value.
func (s *StatusStream) Current() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a channel of future status values and a function that
// ends the subscription and closes the channel.
func (s *StatusStream) Subscribe() (<-chan bool, func()) {
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan bool),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	go sub.run()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
			close(sub.done)
		})
	}
}

func (s *StatusStream) publish(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = v
	for sub := range s.subs {
		sub.push(v)
	}
}

type subscriber struct {
	mu    sync.Mutex
	queue []bool
	wake  chan struct{}
	out   chan bool
	done  chan struct{}
}

func (s *subscriber) push(v bool) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, v := range pending {
			select {
			case s.out <- v:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
