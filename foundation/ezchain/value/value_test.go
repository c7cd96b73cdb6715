package value_test

import (
	"errors"
	"testing"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/acchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/ccchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/txn"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/value"
)

// fakeLedger is a minimal value.Ledger backed by an acchain.Chain and a
// single CC-block, enough to drive Proof.Verify in isolation.
type fakeLedger struct {
	chain *acchain.Chain
	cc    ccchain.Block
}

func (l fakeLedger) ACBlockAt(height uint64) (acchain.Block, bool) { return l.chain.At(height) }
func (l fakeLedger) ACAnyFilterContains(from, to uint64, owner string) (bool, error) {
	return l.chain.AnyFilterContains(from, to, owner)
}
func (l fakeLedger) LatestCCBlock() ccchain.Block { return l.cc }

func sealedBlock(t *testing.T, chain *acchain.Chain, height uint64, author string, txs []txn.Tx) string {
	t.Helper()

	encoded := make([]string, len(txs))
	for i, tx := range txs {
		encoded[i] = tx.Encode()
	}
	digest := txn.DigestFromEncoded(encoded)

	prev := chain.HeadID()
	id := "block-" + author + "-" + prev
	block := acchain.NewBlock(height, id, prev, author, height, []string{author}, []string{digest})
	if err := chain.Append(block); err != nil {
		t.Fatalf("append ac-block: %s", err)
	}
	return digest
}

func TestAddTxsIsIdempotent(t *testing.T) {
	p := value.NewProof(value.Value{InitOwner: "alice", InitHeight: 0, ValueID: "v1"})

	chain := []value.PersonalEntry{{Height: 1, TxSet: []string{"e1"}}, {Height: 2, TxSet: []string{"e2"}}}
	p.AddTxs(chain)
	p.AddTxs(chain)

	if len(p.Entries) != 2 {
		t.Fatalf("expected 2 entries after repeated AddTxs, got %d", len(p.Entries))
	}
}

func TestAddTxsSkipsEntriesBelowLastHeight(t *testing.T) {
	p := value.Proof{InitOwner: "alice", Entries: []value.Entry{{Height: 5}}}
	p.AddTxs([]value.PersonalEntry{{Height: 3}, {Height: 7}})

	if len(p.Entries) != 2 || p.Entries[1].Height != 7 {
		t.Fatalf("got %+v", p.Entries)
	}
}

func TestAfterCCRetainsNewestAnchorBelowTo(t *testing.T) {
	p := value.Proof{Entries: []value.Entry{{Height: 5}, {Height: 12}, {Height: 18}, {Height: 25}}}

	if err := p.AfterCC(20); err != nil {
		t.Fatalf("afterCC: %s", err)
	}

	if len(p.Entries) != 2 || p.Entries[0].Height != 18 {
		t.Fatalf("expected first retained entry at height 18, got %+v", p.Entries)
	}
}

func TestAfterCCKeepsWholeChainWhenToPrecedesEverything(t *testing.T) {
	p := value.Proof{Entries: []value.Entry{{Height: 5}, {Height: 12}}}

	if err := p.AfterCC(1); err != nil {
		t.Fatalf("afterCC: %s", err)
	}
	if len(p.Entries) != 2 {
		t.Fatalf("expected chain unchanged, got %+v", p.Entries)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := value.Proof{
		InitOwner:  "alice",
		InitHeight: 0,
		ValueID:    "v1",
		Entries: []value.Entry{
			{TxSet: []string{"tx-a,v1,alice,bob,0"}, Height: 1},
		},
		TxCount: 1,
	}

	got, err := value.Decode(p.Encode())
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if got.InitOwner != p.InitOwner || got.ValueID != p.ValueID || got.TxCount != p.TxCount {
		t.Fatalf("got %+v, exp %+v", got, p)
	}
	if len(got.Entries) != 1 || got.Entries[0].Height != 1 {
		t.Fatalf("got entries %+v", got.Entries)
	}
}

func TestVerifySucceedsForSingleHopSpend(t *testing.T) {
	chain := acchain.New()
	tx := txn.Tx{ID: "tx-1", ValueID: "v1", Owner: "alice", Recipient: "bob", ACHeight: 1}
	sealedBlock(t, chain, 1, "alice", []txn.Tx{tx})

	p := value.Proof{
		InitOwner:  "alice",
		InitHeight: 0,
		ValueID:    "v1",
		Entries:    []value.Entry{{TxSet: []string{tx.Encode()}, Height: 1}},
	}

	ledger := fakeLedger{chain: chain, cc: ccchain.NewGenesis()}
	if err := p.Verify(ledger, "bob"); err != nil {
		t.Fatalf("verify: %s", err)
	}
}

func TestVerifyFailsOnInitHigh(t *testing.T) {
	chain := acchain.New()
	tx := txn.Tx{ID: "tx-1", ValueID: "v1", Owner: "alice", Recipient: "bob", ACHeight: 25}
	for h := uint64(1); h < 25; h++ {
		chain.Append(acchain.NewBlock(h, "filler", chain.HeadID(), "miner-x", h, nil, nil))
	}
	sealedBlock(t, chain, 25, "alice", []txn.Tx{tx})

	p := value.Proof{
		InitOwner:  "alice",
		InitHeight: 0,
		ValueID:    "v1",
		Entries:    []value.Entry{{TxSet: []string{tx.Encode()}, Height: 25}},
	}

	cc := ccchain.Block{Height: 3, ACBHeight: 20}
	ledger := fakeLedger{chain: chain, cc: cc}
	err := p.Verify(ledger, "bob")
	if !errors.Is(err, value.ErrInitHigh) {
		t.Fatalf("got %v, exp ErrInitHigh", err)
	}
}

func TestVerifyFailsOnWrongOwner(t *testing.T) {
	chain := acchain.New()
	tx := txn.Tx{ID: "tx-1", ValueID: "v1", Owner: "alice", Recipient: "bob", ACHeight: 1}
	sealedBlock(t, chain, 1, "alice", []txn.Tx{tx})

	p := value.Proof{
		InitOwner: "alice",
		ValueID:   "v1",
		Entries:   []value.Entry{{TxSet: []string{tx.Encode()}, Height: 1}},
	}

	ledger := fakeLedger{chain: chain, cc: ccchain.NewGenesis()}
	err := p.Verify(ledger, "carol")
	if !errors.Is(err, value.ErrWrongOwner) {
		t.Fatalf("got %v, exp ErrWrongOwner", err)
	}
}

func TestVerifyFailsOnDoubleSpend(t *testing.T) {
	chain := acchain.New()
	tx1 := txn.Tx{ID: "tx-1", ValueID: "v1", Owner: "alice", Recipient: "bob", ACHeight: 1}
	tx2 := txn.Tx{ID: "tx-2", ValueID: "v1", Owner: "alice", Recipient: "carol", ACHeight: 1}
	sealedBlock(t, chain, 1, "alice", []txn.Tx{tx1, tx2})

	p := value.Proof{
		InitOwner: "alice",
		ValueID:   "v1",
		Entries:   []value.Entry{{TxSet: []string{tx1.Encode(), tx2.Encode()}, Height: 1}},
	}

	ledger := fakeLedger{chain: chain, cc: ccchain.NewGenesis()}
	err := p.Verify(ledger, "bob")
	if !errors.Is(err, value.ErrDoubleSpent) {
		t.Fatalf("got %v, exp ErrDoubleSpent", err)
	}
}

func TestVerifyFailsOnNotSpend(t *testing.T) {
	chain := acchain.New()
	other := txn.Tx{ID: "tx-1", ValueID: "v2", Owner: "alice", Recipient: "bob", ACHeight: 1}
	sealedBlock(t, chain, 1, "alice", []txn.Tx{other})

	p := value.Proof{
		InitOwner: "alice",
		ValueID:   "v1",
		Entries:   []value.Entry{{TxSet: []string{other.Encode()}, Height: 1}},
	}

	ledger := fakeLedger{chain: chain, cc: ccchain.NewGenesis()}
	err := p.Verify(ledger, "alice")
	if !errors.Is(err, value.ErrNotSpend) {
		t.Fatalf("got %v, exp ErrNotSpend", err)
	}
}

func TestVerifyDetectsGapOmittedBatch(t *testing.T) {
	chain := acchain.New()
	tx1 := txn.Tx{ID: "tx-1", ValueID: "v1", Owner: "alice", Recipient: "bob", ACHeight: 1}
	sealedBlock(t, chain, 1, "alice", []txn.Tx{tx1})
	// bob mines at height 2 and that batch is left out of the proof — a gap.
	chain.Append(acchain.NewBlock(2, "id2", chain.HeadID(), "bob", 2, []string{"bob"}, []string{"unrelated-digest"}))

	tx3 := txn.Tx{ID: "tx-3", ValueID: "v1", Owner: "bob", Recipient: "carol", ACHeight: 3}
	sealedBlock(t, chain, 3, "bob", []txn.Tx{tx3})

	p := value.Proof{
		InitOwner: "alice",
		ValueID:   "v1",
		Entries: []value.Entry{
			{TxSet: []string{tx1.Encode()}, Height: 1},
			{TxSet: []string{tx3.Encode()}, Height: 3},
		},
	}

	ledger := fakeLedger{chain: chain, cc: ccchain.NewGenesis()}
	err := p.Verify(ledger, "carol")
	if !errors.Is(err, value.ErrIncomplete) {
		t.Fatalf("got %v, exp ErrIncomplete for the omitted-batch gap", err)
	}
}

func TestVerifyHonorsFailedTxVerdict(t *testing.T) {
	chain := acchain.New()
	tx := txn.Tx{ID: "tx-1", ValueID: "v1", Owner: "alice", Recipient: "bob", ACHeight: 1}
	digest := sealedBlock(t, chain, 1, "alice", []txn.Tx{tx})

	cc := ccchain.Block{
		FailSet: map[string]int{digest: 0},
		FailTxn: [][]string{{"tx-1"}},
	}

	p := value.Proof{
		InitOwner: "alice",
		ValueID:   "v1",
		Entries:   []value.Entry{{TxSet: []string{tx.Encode()}, Height: 1}},
	}

	ledger := fakeLedger{chain: chain, cc: cc}
	err := p.Verify(ledger, "alice")
	if !errors.Is(err, value.ErrNotSpend) {
		t.Fatalf("got %v, exp ErrNotSpend once the spend is struck by a CC verdict", err)
	}
}
