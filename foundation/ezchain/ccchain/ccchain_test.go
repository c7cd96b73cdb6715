package ccchain_test

import (
	"testing"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/ccchain"
)

func TestNewChainStartsAtGenesis(t *testing.T) {
	c := ccchain.New()
	if c.Top() != 0 {
		t.Fatalf("got top %d, exp 0", c.Top())
	}
	if c.Head().ID != ccchain.ZeroID || c.Head().PrevID != ccchain.ZeroID {
		t.Fatalf("genesis block should have zero id and prev_id, got %+v", c.Head())
	}
}

func TestAppendRejectsOutOfOrderHeight(t *testing.T) {
	c := ccchain.New()
	b := ccchain.Block{Height: 2, ID: "id2", PrevID: "id1"}
	if err := c.Append(b); err == nil {
		t.Fatalf("expected error appending height 2 after genesis")
	}
}

func TestAppendAndAtRoundTrip(t *testing.T) {
	c := ccchain.New()
	b := ccchain.Block{Height: 1, ID: "id1", PrevID: ccchain.ZeroID, Miner: "miner-0", ACBHeight: 5}
	if err := c.Append(b); err != nil {
		t.Fatalf("append: %s", err)
	}

	got, ok := c.At(1)
	if !ok || got.ACBHeight != 5 {
		t.Fatalf("got %+v, ok=%v", got, ok)
	}
}

func TestVerdictAndIsFailedTx(t *testing.T) {
	b := ccchain.Block{
		FailSet: map[string]int{
			"dGood":    0,
			"dMissing": ccchain.MissingOrInvalid,
		},
		FailTxn: [][]string{{"tx-a", "tx-b"}},
	}

	if idx, ok := b.Verdict("dGood"); !ok || idx != 0 {
		t.Fatalf("got verdict %d, ok=%v", idx, ok)
	}
	if _, ok := b.Verdict("dUnknown"); ok {
		t.Fatalf("expected no verdict for an unflagged digest")
	}

	if !b.IsFailedTx("dGood", "tx-a") {
		t.Fatalf("expected tx-a to be failed within dGood")
	}
	if b.IsFailedTx("dGood", "tx-z") {
		t.Fatalf("tx-z was never flagged")
	}
	if b.IsFailedTx("dMissing", "tx-a") {
		t.Fatalf("a fully missing batch has no individually-failed transactions")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := ccchain.Block{
		Height:      3,
		ID:          "id3",
		PrevID:      "id2",
		Miner:       "miner-1",
		ACBHeight:   20,
		EpochBlocks: 4,
		Time:        99,
		TxnCount:    7,
		FailSet: map[string]int{
			"dA": ccchain.MissingOrInvalid,
			"dB": 0,
		},
		FailTxn: [][]string{{"tx-1", "tx-2"}},
	}

	got, err := ccchain.Decode(b.Encode())
	if err != nil {
		t.Fatalf("decode: %s", err)
	}

	if got.Height != b.Height || got.ID != b.ID || got.PrevID != b.PrevID || got.Miner != b.Miner {
		t.Fatalf("got %+v, exp %+v", got, b)
	}
	if got.ACBHeight != b.ACBHeight || got.EpochBlocks != b.EpochBlocks || got.TxnCount != b.TxnCount {
		t.Fatalf("got %+v, exp %+v", got, b)
	}
	if got.FailSet["dA"] != ccchain.MissingOrInvalid || got.FailSet["dB"] != 0 {
		t.Fatalf("got fail_set %v", got.FailSet)
	}
	if len(got.FailTxn) != 1 || got.FailTxn[0][0] != "tx-1" || got.FailTxn[0][1] != "tx-2" {
		t.Fatalf("got fail_txn %v", got.FailTxn)
	}
}

func TestEncodeDecodeRoundTripEmptyFailSet(t *testing.T) {
	b := ccchain.Block{Height: 1, ID: "id1", PrevID: ccchain.ZeroID, Miner: "miner-0"}

	got, err := ccchain.Decode(b.Encode())
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if len(got.FailSet) != 0 || len(got.FailTxn) != 0 {
		t.Fatalf("expected empty fail_set/fail_txn, got %+v", got)
	}
}
