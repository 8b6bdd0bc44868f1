// Package dispatcher implements the FIFO queue of ready-to-run context
// ids, the live-context counter that tells the worker pool when to
// stop, and the fixed-size worker pool itself.
//
// The dispatcher is deliberately ignorant of what a "context" is: it
// multiplexes opaque uint64 ids across a SliceFunc supplied by the
// executor package, the same way the original VM's global_vm_queue and
// global_running_vms counter knew nothing about IrrealContext's
// internals.
package dispatcher

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the fixed worker-pool size the specification
// names as its implementation default.
const DefaultWorkers = 8

// Dispatcher is the shared FIFO queue of context ids plus the
// live-context counter. Both are guarded by independent locks, per the
// governing specification's lock-ordering rules (the dispatcher-queue
// lock and the counter lock are leaves, acquired last if at all).
type Dispatcher struct {
	queueMu sync.Mutex
	queue   []uint64

	liveMu sync.Mutex
	live   int64
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Enqueue appends id to the tail of the ready queue.
func (d *Dispatcher) Enqueue(id uint64) {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	d.queue = append(d.queue, id)
}

// EnqueueFront inserts id at the head of the ready queue. CALL uses
// this so a freshly spawned child gets a chance to run promptly.
func (d *Dispatcher) EnqueueFront(id uint64) {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	d.queue = append([]uint64{id}, d.queue...)
}

// Dequeue removes and returns the context id at the head of the
// queue. ok is false if the queue was empty.
func (d *Dispatcher) Dequeue() (uint64, bool) {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	if len(d.queue) == 0 {
		return 0, false
	}
	id := d.queue[0]
	d.queue = d.queue[1:]
	return id, true
}

// AddLive adds delta to the live-context counter (positive on
// context creation, negative on retirement).
func (d *Dispatcher) AddLive(delta int64) {
	d.liveMu.Lock()
	defer d.liveMu.Unlock()
	d.live += delta
}

// Live returns the current live-context count.
func (d *Dispatcher) Live() int64 {
	d.liveMu.Lock()
	defer d.liveMu.Unlock()
	return d.live
}

// SliceFunc performs one executor slice for the given context id. It
// returns an error only for a fatal condition (§7): the first such
// error aborts the whole run.
type SliceFunc func(ctxID uint64) error

// RunWorkers starts n goroutines (DefaultWorkers if n<=0), each
// repeatedly dequeuing a context id and calling slice, until the
// live-context counter reaches zero or ctx is canceled. The first
// worker to receive a fatal error from slice cancels the group so its
// siblings stop promptly — cancellation is exposed for the driver to
// use after a fatal error, even though the language itself defines no
// user-facing way to cancel a run.
//
// Grounded on golang.org/x/sync/errgroup, used for exactly this
// "fixed pool of goroutines draining shared work" shape in
// Fantom-foundation-Tosca's interpreter stress tests and
// giantswarm-k8senv's bounded worker pool.
func (d *Dispatcher) RunWorkers(ctx context.Context, n int, slice SliceFunc) error {
	if n <= 0 {
		n = DefaultWorkers
	}
	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		group.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				if d.Live() <= 0 {
					return nil
				}
				id, ok := d.Dequeue()
				if !ok {
					continue
				}
				if err := slice(id); err != nil {
					return err
				}
			}
		})
	}
	return group.Wait()
}
