package node

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/acchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/driver"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/genesis"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/mempool"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/metrics"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/peer"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/txn"
)

// fakeNet is a synchronous, single-threaded stand-in for the reference
// discrete-event driver: broadcasts/unicasts deliver immediately by
// calling Handle directly, and timers are recorded but never fire on
// their own. Good enough to drive the node-local handlers step by step
// without needing the real sim package's event loop.
type fakeNet struct {
	nodes map[peer.NodeID]*Node
}

func (f *fakeNet) Now() time.Duration { return 0 }
func (f *fakeNet) Schedule(peer.NodeID, time.Duration, driver.Event) driver.TimerHandle {
	return 0
}
func (f *fakeNet) Cancel(driver.TimerHandle) {}

func (f *fakeNet) Send(kind driver.Kind, payload any, from peer.NodeID, to int, immediate bool) {
	ev := driver.Event{Kind: kind, From: from, Payload: payload}
	if to < 0 {
		for id, n := range f.nodes {
			if id == from {
				continue
			}
			if err := n.Handle(ev); err != nil {
				panic(err) // test-only harness; a handler error means the test itself is broken
			}
		}
		return
	}
	if n, ok := f.nodes[peer.NodeID(to)]; ok {
		if err := n.Handle(ev); err != nil {
			panic(err)
		}
	}
}

func newTestNode(t *testing.T, id peer.NodeID, net *fakeNet, pool *mempool.Pool, peers *peer.Set) *Node {
	t.Helper()

	cfg := Config{
		ID:      id,
		Params:  genesis.Default(),
		Sched:   net,
		Bcast:   net,
		Pool:    pool,
		Metrics: metrics.New(),
		Peers:   peers,
		Rand:    rand.New(rand.NewSource(int64(id) + 1)),
	}

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("node.New(%d): %s", id, err)
	}
	return n
}

// S1: a single transfer from node-0 to node-1, with no CC consensus
// involved, ends with node-1 holding a verified value and node-0 no
// longer holding it.
func TestSingleTransferEndToEnd(t *testing.T) {
	pool := mempool.New()
	peers := peer.NewSet()
	peers.Add(0)
	peers.Add(1)

	net := &fakeNet{nodes: make(map[peer.NodeID]*Node)}
	n0 := newTestNode(t, 0, net, pool, peers)
	n1 := newTestNode(t, 1, net, pool, peers)
	net.nodes[0] = n0
	net.nodes[1] = n1

	n0.SeedValues(1, 0)
	ids := n0.ValueIDs()
	if len(ids) != 1 {
		t.Fatalf("want 1 seeded value, got %d", len(ids))
	}
	valueID := ids[0]

	if err := n0.handleGenTx(); err != nil {
		t.Fatalf("handleGenTx: %s", err)
	}
	if pool.Count() != 1 {
		t.Fatalf("pool count = %d, want 1", pool.Count())
	}

	if err := n0.handlePow(); err != nil {
		t.Fatalf("handlePow: %s", err)
	}
	if n0.acChain.Top() != 1 {
		t.Fatalf("node-0 ac chain top = %d, want 1", n0.acChain.Top())
	}
	if n1.acChain.Top() != 1 {
		t.Fatalf("node-1 ac chain top = %d, want 1 (broadcast should have reached it)", n1.acChain.Top())
	}

	if n0.HoldsValue(valueID) {
		t.Fatal("node-0 still holds the value after spending it")
	}
	if !n1.HoldsValue(valueID) {
		t.Fatal("node-1 does not hold the value after receiving it")
	}

	p, ok := n1.Proof(valueID)
	if !ok {
		t.Fatal("node-1 has no proof for the received value")
	}
	if p.LastHeight() != 1 {
		t.Fatalf("node-1's proof last height = %d, want 1", p.LastHeight())
	}

	stats := n1.Metrics().Stats()
	for kind, count := range stats {
		if count > 0 {
			t.Fatalf("unexpected metric recorded: %s = %d", kind, count)
		}
	}
}

// gen_tx with no held values is a no-op, not an error.
func TestHandleGenTxNoValuesIsNoop(t *testing.T) {
	pool := mempool.New()
	peers := peer.NewSet()
	peers.Add(0)
	peers.Add(1)

	net := &fakeNet{nodes: make(map[peer.NodeID]*Node)}
	n0 := newTestNode(t, 0, net, pool, peers)
	net.nodes[0] = n0

	if err := n0.handleGenTx(); err != nil {
		t.Fatalf("handleGenTx: %s", err)
	}
	if pool.Count() != 0 {
		t.Fatalf("pool count = %d, want 0", pool.Count())
	}
}

// Observing an AC-block out of sequence is the fatal ac_chain_underrun
// condition and must be surfaced as an error, not merely logged.
func TestObserveACBlockFatalOnUnderrun(t *testing.T) {
	pool := mempool.New()
	peers := peer.NewSet()
	peers.Add(0)

	net := &fakeNet{nodes: make(map[peer.NodeID]*Node)}
	n0 := newTestNode(t, 0, net, pool, peers)
	net.nodes[0] = n0

	block := acchain.NewBlock(2, "acb-skip", n0.acChain.HeadID(), n0.name, 0, nil, nil) // skips height 1
	if err := n0.appendACBlock(block, true); err == nil {
		t.Fatal("appendACBlock: want ac_chain_underrun error, got nil")
	}
}

// A batch that fails batchVerifies must be drained from the pool at
// seal time along with everything that does verify, not left behind to
// be re-flagged (and re-counted) by every subsequent pow timer.
func TestHandlePowDrainsMalformedBatch(t *testing.T) {
	pool := mempool.New()
	peers := peer.NewSet()
	peers.Add(0)

	net := &fakeNet{nodes: make(map[peer.NodeID]*Node)}
	n0 := newTestNode(t, 0, net, pool, peers)
	net.nodes[0] = n0

	bad := txn.Batch{Author: n0.name, Digest: "not-the-real-digest-of-an-empty-entry-list"}
	pool.Upsert(bad)
	if pool.Count() != 1 {
		t.Fatalf("pool count = %d, want 1", pool.Count())
	}

	if err := n0.handlePow(); err != nil {
		t.Fatalf("handlePow: %s", err)
	}

	if pool.Count() != 0 {
		t.Fatalf("pool count after handlePow = %d, want 0: malformed batch was left in the pool", pool.Count())
	}

	block, ok := n0.acChain.At(1)
	if !ok {
		t.Fatal("ac chain has no block at height 1")
	}
	if len(block.AVec) != 0 {
		t.Fatalf("sealed block A_vec = %v, want empty: malformed batch should not have been sealed", block.AVec)
	}

	stats := n0.Metrics().Stats()
	if stats[metrics.KindEmptyBatch] != 1 {
		t.Fatalf("KindEmptyBatch = %d, want 1", stats[metrics.KindEmptyBatch])
	}
}
