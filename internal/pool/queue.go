package pool

import "sync"

// slot is one worker's unbounded FIFO queue.
type slot struct {
	id     int
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
}

func newSlot(id int) *slot {
	s := &slot{id: id}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// push appends fn and returns the new queue length.
func (s *slot) push(fn func()) int {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	n := len(s.queue)
	s.mu.Unlock()
	s.cond.Signal()
	return n
}

// pop blocks until a unit is available. ok is false once the slot is closed
// and empty.
func (s *slot) pop() (fn func(), depth int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return nil, 0, false
	}
	fn = s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return fn, len(s.queue), true
}

func (s *slot) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}
