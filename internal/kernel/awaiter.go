package kernel

import (
	"container/heap"
	"time"
)

// Awaiter is a cancellable, single-fire delayed event: the kernel primitive
// that Sleep, ParallelTask execution and the walltime killer race are all
// built from. The API shape (a handle with a blocking Wait and an idempotent
// Cancel) follows go-ethereum's common/mclock.Timer.
type Awaiter struct {
	k         *Kernel
	at        time.Duration
	index     int // heap index, maintained by container/heap
	done      chan struct{}
	cancelled bool
	fired     bool
}

// after schedules a new Awaiter to fire once the virtual clock reaches
// k.now+d and returns it unfired.
func (k *Kernel) after(d time.Duration) *Awaiter {
	k.mu.Lock()
	a := &Awaiter{k: k, at: k.now + d, done: make(chan struct{})}
	heap.Push(&k.heap, a)
	k.running--
	if k.running == 0 {
		k.advanceLocked()
	}
	k.mu.Unlock()
	return a
}

// After returns an Awaiter that fires once the virtual clock advances by d.
// Unlike Sleep, the returned Awaiter can be Cancel()ed before it fires.
func (k *Kernel) After(d time.Duration) *Awaiter {
	return k.after(d)
}

// Wait blocks until the Awaiter fires (by reaching its deadline) or is
// cancelled, returning true if it was cancelled first.
func (a *Awaiter) Wait() bool {
	<-a.done
	return a.cancelled
}

// Cancel stops a pending Awaiter before it fires. It is safe to call multiple
// times and safe to call after the Awaiter has already fired (no-op in that
// case), matching the cancellation contract of the parallel-task/walltime
// race in the job-execution engine.
func (a *Awaiter) Cancel() {
	a.k.mu.Lock()
	defer a.k.mu.Unlock()
	if a.fired {
		return
	}
	if a.index >= 0 && a.index < len(a.k.heap) && a.k.heap[a.index] == a {
		heap.Remove(&a.k.heap, a.index)
	}
	a.k.running++
	a.fireLocked(true)
}

// fireLocked marks the Awaiter as settled and releases its Wait()er. The
// caller must already hold k.mu, and must already account for this awaiter's
// task becoming runnable again (the caller increments running before
// invoking fireLocked, whether firing from advanceLocked's batch or from a
// direct Cancel).
func (a *Awaiter) fireLocked(cancelled bool) {
	if a.fired {
		return
	}
	a.fired = true
	a.cancelled = cancelled
	close(a.done)
}

// awaiterHeap is a container/heap priority queue of pending Awaiters ordered
// by deadline, following the standard library's documented heap.Interface
// example (container/heap's PriorityQueue pattern).
type awaiterHeap []*Awaiter

func (h awaiterHeap) Len() int            { return len(h) }
func (h awaiterHeap) Less(i, j int) bool  { return h[i].at < h[j].at }
func (h awaiterHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *awaiterHeap) Push(x any) {
	a := x.(*Awaiter)
	a.index = len(*h)
	*h = append(*h, a)
}

func (h *awaiterHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.index = -1
	*h = old[:n-1]
	return a
}
