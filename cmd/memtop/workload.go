package main

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/pkg/mem"
)

// idleDelay is how long a paused or parked worker sleeps between checks.
const idleDelay = 20 * time.Millisecond

// WorkloadConfig shapes the background allocation traffic.
type WorkloadConfig struct {
	Workers int           // Goroutines started; all are active at first
	Slots   int           // Blocks each worker keeps live at most
	MaxSize uint64        // Largest block size in bytes
	Pace    time.Duration // Sleep after every operation
	Seed    uint64
}

// Workload churns a heap from several goroutines. Each worker owns a fixed
// set of slots and on every step either frees an occupied slot or fills an
// empty one, so live memory drifts around half the slot capacity.
type Workload struct {
	heap *mem.Heap
	cfg  WorkloadConfig

	active atomic.Int32
	paused atomic.Bool
	ops    atomic.Uint64
	failed atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkload returns a stopped workload.
func NewWorkload(heap *mem.Heap, cfg WorkloadConfig) *Workload {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Slots <= 0 {
		cfg.Slots = 1
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 1
	}
	w := &Workload{heap: heap, cfg: cfg}
	w.active.Store(int32(cfg.Workers))
	return w
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (w *Workload) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for id := range w.cfg.Workers {
		w.wg.Add(1)
		go w.run(ctx, id)
	}
}

// Stop halts the workers and waits until every block they hold is freed.
func (w *Workload) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Workload) run(ctx context.Context, id int) {
	defer w.wg.Done()

	slots := make([]unsafe.Pointer, w.cfg.Slots)
	release := func() {
		for i, p := range slots {
			if p != nil {
				w.heap.Free(p)
				slots[i] = nil
			}
		}
	}
	defer release()

	rng := rand.New(rand.NewPCG(w.cfg.Seed, uint64(id)))
	for {
		if w.paused.Load() || int32(id) >= w.active.Load() {
			// Parked workers give their memory back; paused ones keep it.
			if !w.paused.Load() {
				release()
			}
			if !sleep(ctx, idleDelay) {
				return
			}
			continue
		}

		i := rng.IntN(len(slots))
		if slots[i] != nil {
			w.heap.Free(slots[i])
			slots[i] = nil
		} else {
			p := w.heap.Alloc(uintptr(1 + rng.Uint64N(w.cfg.MaxSize)))
			if p == nil {
				w.failed.Add(1)
				logger.Debug("workload allocation failed", "worker", id)
			}
			slots[i] = p
		}
		w.ops.Add(1)

		if w.cfg.Pace > 0 {
			if !sleep(ctx, w.cfg.Pace) {
				return
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// TogglePaused flips the paused state and returns the new state.
func (w *Workload) TogglePaused() bool {
	for {
		old := w.paused.Load()
		if w.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (w *Workload) Paused() bool { return w.paused.Load() }
func (w *Workload) Active() int  { return int(w.active.Load()) }
func (w *Workload) Workers() int { return w.cfg.Workers }
func (w *Workload) Ops() uint64  { return w.ops.Load() }

// Failed returns the number of allocations the heap refused.
func (w *Workload) Failed() uint64 { return w.failed.Load() }

// SetActive sets how many workers run, clamped to [0, Workers], and returns
// the value stored.
func (w *Workload) SetActive(n int) int {
	n = max(0, min(n, w.cfg.Workers))
	w.active.Store(int32(n))
	return n
}
