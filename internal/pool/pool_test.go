package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRunsAndWaits(t *testing.T) {
	p := New(3)
	defer p.Close()

	var ran bool
	err := p.Do(context.Background(), "k", func() { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 3, p.Size())
}

func TestSameKeyRunsInSubmissionOrder(t *testing.T) {
	p := New(3)
	defer p.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 200; i++ {
		i := i
		require.NoError(t, p.Submit("same", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, p.Do(context.Background(), "same", func() {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 200)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestWorkersRunConcurrently(t *testing.T) {
	p := New(3)
	defer p.Close()

	// find keys that land on distinct slots
	keys := map[*slot]string{}
	for i := 0; len(keys) < 3 && i < 1000; i++ {
		k := fmt.Sprintf("key%d", i)
		s := p.slotFor(k)
		if _, ok := keys[s]; !ok {
			keys[s] = k
		}
	}
	require.Len(t, keys, 3)

	var started sync.WaitGroup
	started.Add(3)
	release := make(chan struct{})
	defer close(release)
	for _, k := range keys {
		require.NoError(t, p.Submit(k, func() {
			started.Done()
			<-release
		}))
	}

	waited := make(chan struct{})
	go func() {
		started.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not run in parallel")
	}
}

func TestDoContextCancelled(t *testing.T) {
	p := New(1)
	defer p.Close()

	block := make(chan struct{})
	require.NoError(t, p.Submit("a", func() { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Do(ctx, "b", func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestDoPanic(t *testing.T) {
	p := New(1)
	defer p.Close()

	err := p.Do(context.Background(), "k", func() { panic("boom") })
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Value)

	// worker survives
	require.NoError(t, p.Do(context.Background(), "k", func() {}))
}

func TestSubmitPanicKeepsWorker(t *testing.T) {
	p := New(1)
	defer p.Close()

	require.NoError(t, p.Submit("k", func() { panic("fire-and-forget") }))
	require.NoError(t, p.Do(context.Background(), "k", func() {}))
}

func TestClosedPoolRejects(t *testing.T) {
	p := New(2)
	p.Close()
	p.Close()

	assert.ErrorIs(t, p.Submit("k", func() {}), ErrPoolClosed)
	assert.ErrorIs(t, p.Do(context.Background(), "k", func() {}), ErrPoolClosed)
	assert.ErrorIs(t, p.Fence(context.Background(), func() {}), ErrPoolClosed)
}

func TestCloseDrainsQueuedWork(t *testing.T) {
	p := New(2)
	var n atomic.Int64
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Submit(fmt.Sprintf("k%d", i), func() { n.Add(1) }))
	}
	p.Close()
	assert.Equal(t, int64(100), n.Load())
}

func TestFenceSeesEarlierWork(t *testing.T) {
	p := New(3)
	defer p.Close()

	var n atomic.Int64
	for i := 0; i < 300; i++ {
		require.NoError(t, p.Submit(fmt.Sprintf("k%d", i), func() {
			time.Sleep(10 * time.Microsecond)
			n.Add(1)
		}))
	}
	var seen int64
	require.NoError(t, p.Fence(context.Background(), func() { seen = n.Load() }))
	assert.Equal(t, int64(300), seen)
}

func TestConcurrentFences(t *testing.T) {
	p := New(3)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			assert.NoError(t, p.Fence(ctx, func() {}))
		}()
	}
	wg.Wait()
}

func TestFencePanic(t *testing.T) {
	p := New(2)
	defer p.Close()

	err := p.Fence(context.Background(), func() { panic("snap") })
	var pe *PanicError
	assert.ErrorAs(t, err, &pe)
	require.NoError(t, p.Fence(context.Background(), func() {}))
}

type countingObserver struct {
	mu    sync.Mutex
	done  int
	depth map[int]int
}

func (o *countingObserver) QueueDepth(slot, depth int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.depth[slot] = depth
}

func (o *countingObserver) TaskDone(int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done++
}

func TestObserver(t *testing.T) {
	obs := &countingObserver{depth: map[int]int{}}
	p := New(2, WithObserver(obs), WithVirtualNodes(8))
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(fmt.Sprintf("k%d", i), func() {}))
	}
	p.Close()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 10, obs.done)
	assert.NotEmpty(t, obs.depth)
}
