// Package mempool implements the batch pool of spec §4.5: a process-wide
// queue of broadcast-but-unsealed batches. Producers are any node
// flushing its tx pool; the consumer is whichever node next mines an
// AC-block, which drains the whole pool at seal time — batches that
// verify are re-queued into the pool and their digests sealed into the
// AC-block, the rest are discarded outright rather than left to be
// re-flagged by every future miner. Ordering is FIFO, and Upsert ignores
// a batch whose digest is already queued.
package mempool

import (
	"sync"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/txn"
)

// Pool is a FIFO queue of batches, keyed internally by digest for O(1)
// lookup; removal scans the FIFO order.
type Pool struct {
	mu    sync.RWMutex
	order []string
	pool  map[string]txn.Batch
}

// New constructs an empty pool.
func New() *Pool {
	return &Pool{pool: make(map[string]txn.Batch)}
}

// Count returns the number of batches currently queued.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.order)
}

// Upsert adds a batch to the pool. A batch already present under the
// same digest is left untouched (§4.5: a duplicate digest is harmless).
func (p *Pool) Upsert(b txn.Batch) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pool[b.Digest]; ok {
		return
	}

	p.pool[b.Digest] = b
	p.order = append(p.order, b.Digest)
}

// Get returns the batch stored under digest, if any.
func (p *Pool) Get(digest string) (txn.Batch, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b, ok := p.pool[digest]
	return b, ok
}

// Delete removes the batch stored under digest, once its AC-block has
// been observed.
func (p *Pool) Delete(digest string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pool[digest]; !ok {
		return
	}
	delete(p.pool, digest)

	for i, d := range p.order {
		if d == digest {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// DrainAll removes and returns every queued batch in FIFO order — the
// mining node's view at block-seal time.
func (p *Pool) DrainAll() []txn.Batch {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]txn.Batch, 0, len(p.order))
	for _, d := range p.order {
		out = append(out, p.pool[d])
	}

	p.order = nil
	p.pool = make(map[string]txn.Batch)

	return out
}

// Snapshot returns every queued batch in FIFO order without draining the
// pool.
func (p *Pool) Snapshot() []txn.Batch {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]txn.Batch, 0, len(p.order))
	for _, d := range p.order {
		out = append(out, p.pool[d])
	}
	return out
}
