// Package sim is the reference implementation of the driver.Scheduler and
// driver.Broadcaster collaborators (spec §5, §6): a single-threaded
// discrete-event loop over a container/heap priority queue, ordering
// events by simulated time and breaking ties by insertion order so a
// run is fully reproducible given the same *rand.Rand seed.
package sim

import (
	"container/heap"
	"fmt"
	"math/rand"
	"time"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/driver"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/peer"
)

// Handler is the callback surface a registered node exposes to the
// driver; node.Node satisfies this directly.
type Handler interface {
	Handle(ev driver.Event) error
}

// item is one entry in the event queue: a message addressed to target,
// due at time, broken by seq for deterministic ordering among events
// scheduled for the same instant.
type item struct {
	time     time.Duration
	seq      uint64
	target   peer.NodeID
	ev       driver.Event
	canceled bool
	index    int // maintained by container/heap
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Driver is the reference discrete-event simulator: the single clock
// and message queue every registered node shares.
type Driver struct {
	queue        itemHeap
	now          time.Duration
	stopAt       time.Duration
	networkDelta time.Duration
	rnd          *rand.Rand
	seq          uint64
	nextHandle   driver.TimerHandle
	byHandle     map[driver.TimerHandle]*item
	handlers     map[peer.NodeID]Handler
	delivered    int
}

// New constructs an empty driver. stopAt bounds how long Run executes
// (in simulated time); zero means run until the queue drains.
func New(rnd *rand.Rand, networkDelta, stopAt time.Duration) *Driver {
	return &Driver{
		networkDelta: networkDelta,
		stopAt:       stopAt,
		rnd:          rnd,
		byHandle:     make(map[driver.TimerHandle]*item),
		handlers:     make(map[peer.NodeID]Handler),
	}
}

// Register associates a node id with the handler that consumes events
// addressed to it. Call once per node before Run.
func (d *Driver) Register(id peer.NodeID, h Handler) {
	d.handlers[id] = h
}

// Now implements driver.Scheduler.
func (d *Driver) Now() time.Duration { return d.now }

// Schedule implements driver.Scheduler.
func (d *Driver) Schedule(node peer.NodeID, delay time.Duration, ev driver.Event) driver.TimerHandle {
	return d.push(node, d.now+delay, ev)
}

// Cancel implements driver.Scheduler. Cancelling an already-fired or
// unknown handle is a no-op.
func (d *Driver) Cancel(h driver.TimerHandle) {
	it, ok := d.byHandle[h]
	if !ok {
		return
	}
	it.canceled = true
	delete(d.byHandle, h)
}

// Send implements driver.Broadcaster. immediate models the zero-delay
// AC-block broadcast of spec §5; otherwise every recipient gets an
// independent Uniform(0, networkDelta) delay.
func (d *Driver) Send(kind driver.Kind, payload any, from peer.NodeID, to int, immediate bool) {
	ev := driver.Event{Kind: kind, From: from, Payload: payload}

	if to >= 0 {
		d.push(peer.NodeID(to), d.now+d.deliveryDelay(immediate), ev)
		return
	}

	for id := range d.handlers {
		if id == from {
			continue
		}
		d.push(id, d.now+d.deliveryDelay(immediate), ev)
	}
}

func (d *Driver) deliveryDelay(immediate bool) time.Duration {
	if immediate || d.networkDelta <= 0 {
		return 0
	}
	return time.Duration(d.rnd.Int63n(int64(d.networkDelta) + 1))
}

func (d *Driver) push(node peer.NodeID, at time.Duration, ev driver.Event) driver.TimerHandle {
	d.seq++
	it := &item{time: at, seq: d.seq, target: node, ev: ev}
	heap.Push(&d.queue, it)

	d.nextHandle++
	d.byHandle[d.nextHandle] = it
	return d.nextHandle
}

// Run drains the queue in time order, dispatching each event to its
// target's handler, until the queue empties or the clock passes stopAt
// (if nonzero). A handler error halts the run immediately: per spec §7
// the two fatal error kinds (ac_chain_underrun, getLeader underrun) are
// process-terminating for the node that hit them, and a single shared
// event loop has no way to keep the rest of the simulation coherent once
// one node's chain state can no longer be trusted.
func (d *Driver) Run() error {
	for d.queue.Len() > 0 {
		it := heap.Pop(&d.queue).(*item)
		if it.canceled {
			continue
		}
		if d.stopAt > 0 && it.time > d.stopAt {
			return nil
		}

		d.now = it.time
		h, ok := d.handlers[it.target]
		if !ok {
			continue
		}

		if err := h.Handle(it.ev); err != nil {
			return fmt.Errorf("sim: %s at t=%s: %w", peer.Name(it.target), d.now, err)
		}
		d.delivered++
	}
	return nil
}

// Delivered reports how many events this driver has dispatched to a
// handler so far, for diagnostics.
func (d *Driver) Delivered() int { return d.delivered }
