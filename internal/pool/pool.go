package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kvrpc/internal/hashring"
	"kvrpc/internal/logging"
)

var plog = logging.For("pool")

// ErrPoolClosed is returned for work submitted after Close.
var ErrPoolClosed = errors.New("pool: closed")

// PanicError reports a unit of work that panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pool: task panicked: %v", e.Value)
}

// Observer receives queue and execution events. *metrics.Metrics implements it.
type Observer interface {
	QueueDepth(slot, depth int)
	TaskDone(slot int)
}

type nopObserver struct{}

func (nopObserver) QueueDepth(int, int) {}
func (nopObserver) TaskDone(int)        {}

// Option configures a Pool.
type Option func(*Pool)

func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.obs = o
		}
	}
}

// WithVirtualNodes sets how many ring positions each slot owns.
func WithVirtualNodes(n int) Option {
	return func(p *Pool) { p.vNodes = n }
}

// Pool runs units of work on a fixed number of worker slots. Each slot owns an
// unbounded FIFO queue; a key is always routed to the same slot, so units for
// one key run in submission order.
type Pool struct {
	mu     sync.RWMutex
	closed bool

	fenceMu sync.Mutex
	slots   []*slot
	ring    *hashring.Ring
	vNodes  int
	obs     Observer
	wg      sync.WaitGroup
}

// New starts a pool with n workers. n < 1 is treated as 1.
func New(n int, opts ...Option) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{obs: nopObserver{}, vNodes: 64}
	for _, opt := range opts {
		opt(p)
	}

	ids := make([]hashring.SlotID, n)
	p.slots = make([]*slot, n)
	for i := range p.slots {
		ids[i] = hashring.SlotID(i)
		p.slots[i] = newSlot(i)
	}
	p.ring = hashring.NewRing(ids, p.vNodes)

	p.wg.Add(n)
	for _, s := range p.slots {
		go p.run(s)
	}
	return p
}

// Size returns the number of worker slots.
func (p *Pool) Size() int {
	return len(p.slots)
}

func (p *Pool) slotFor(key string) *slot {
	id, ok := p.ring.SlotForKey(key)
	if !ok {
		return p.slots[0]
	}
	return p.slots[id]
}

// Submit queues fn on the slot owning key and returns without waiting.
func (p *Pool) Submit(key string, fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	s := p.slotFor(key)
	p.obs.QueueDepth(s.id, s.push(fn))
	return nil
}

// Do queues fn on the slot owning key and waits for it to finish.
// It returns ErrPoolClosed when the pool rejects the unit, ctx.Err() when the
// wait is abandoned, and *PanicError when fn panics.
func (p *Pool) Do(ctx context.Context, key string, fn func()) error {
	done := make(chan any, 1)
	err := p.Submit(key, func() {
		defer func() { done <- recover() }()
		fn()
	})
	if err != nil {
		return err
	}
	return wait(ctx, done)
}

// Fence runs fn once every slot has drained the work queued before the call.
// All workers stay parked while fn runs, so fn observes a quiescent state.
func (p *Pool) Fence(ctx context.Context, fn func()) error {
	var arrived sync.WaitGroup
	arrived.Add(len(p.slots))
	release := make(chan struct{})
	done := make(chan any, 1)

	// Fences are queued on every slot in the same relative order, otherwise
	// two fences could each park a worker the other is waiting for.
	p.fenceMu.Lock()
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.fenceMu.Unlock()
		return ErrPoolClosed
	}
	for i, s := range p.slots {
		var unit func()
		if i == 0 {
			unit = func() {
				arrived.Done()
				arrived.Wait()
				defer close(release)
				defer func() { done <- recover() }()
				fn()
			}
		} else {
			unit = func() {
				arrived.Done()
				<-release
			}
		}
		p.obs.QueueDepth(s.id, s.push(unit))
	}
	p.mu.RUnlock()
	p.fenceMu.Unlock()

	return wait(ctx, done)
}

func wait(ctx context.Context, done <-chan any) error {
	select {
	case r := <-done:
		if r != nil {
			return &PanicError{Value: r}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, lets every worker drain its queue and waits for
// the workers to exit. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for _, s := range p.slots {
		s.close()
	}
	p.wg.Wait()
	plog.Debug("pool drained", "workers", len(p.slots))
}

func (p *Pool) run(s *slot) {
	defer p.wg.Done()
	for {
		fn, depth, ok := s.pop()
		if !ok {
			return
		}
		p.obs.QueueDepth(s.id, depth)
		p.exec(s, fn)
		p.obs.TaskDone(s.id)
	}
}

// exec keeps the worker alive when a fire-and-forget unit panics.
func (p *Pool) exec(s *slot, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			plog.Error("task panicked", "slot", s.id, "err", r)
		}
	}()
	fn()
}
