package mempool_test

import (
	"testing"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/mempool"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/txn"
)

func batch(author, digest string) txn.Batch {
	return txn.Batch{Author: author, Digest: digest}
}

func TestUpsertAndCountFIFOOrder(t *testing.T) {
	p := mempool.New()
	p.Upsert(batch("alice", "d1"))
	p.Upsert(batch("bob", "d2"))
	p.Upsert(batch("carol", "d3"))

	if p.Count() != 3 {
		t.Fatalf("got count %d, exp 3", p.Count())
	}

	snap := p.Snapshot()
	if len(snap) != 3 || snap[0].Digest != "d1" || snap[1].Digest != "d2" || snap[2].Digest != "d3" {
		t.Fatalf("got %+v, expected FIFO order", snap)
	}
}

func TestUpsertDuplicateDigestIsHarmless(t *testing.T) {
	p := mempool.New()
	p.Upsert(batch("alice", "d1"))
	p.Upsert(batch("alice-again", "d1"))

	if p.Count() != 1 {
		t.Fatalf("got count %d, exp 1 after duplicate digest upsert", p.Count())
	}

	got, ok := p.Get("d1")
	if !ok || got.Author != "alice" {
		t.Fatalf("expected the first upsert to win, got %+v", got)
	}
}

func TestDeleteRemovesFromOrderAndIndex(t *testing.T) {
	p := mempool.New()
	p.Upsert(batch("alice", "d1"))
	p.Upsert(batch("bob", "d2"))

	p.Delete("d1")

	if p.Count() != 1 {
		t.Fatalf("got count %d, exp 1", p.Count())
	}
	if _, ok := p.Get("d1"); ok {
		t.Fatalf("expected d1 to be gone")
	}
	snap := p.Snapshot()
	if len(snap) != 1 || snap[0].Digest != "d2" {
		t.Fatalf("got %+v", snap)
	}
}

func TestDrainAllEmptiesThePoolInFIFOOrder(t *testing.T) {
	p := mempool.New()
	p.Upsert(batch("alice", "d1"))
	p.Upsert(batch("bob", "d2"))

	drained := p.DrainAll()
	if len(drained) != 2 || drained[0].Digest != "d1" || drained[1].Digest != "d2" {
		t.Fatalf("got %+v", drained)
	}
	if p.Count() != 0 {
		t.Fatalf("expected pool empty after drain, got count %d", p.Count())
	}
}
