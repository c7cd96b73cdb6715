package node

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/acchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/ccchain"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/driver"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/metrics"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/txn"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/value"
	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/wire"
)

// Receipt is what a sender hands a recipient after its transaction is
// sealed into an AC-block: the transaction itself, the extended proof
// the recipient should adopt, and the rest of the sealed batch so the
// recipient can independently recompute the batch digest (spec §4.3).
type Receipt struct {
	Sender        string
	Recipient     string
	ACHeight      uint64
	TxIndex       uint64
	Tx            txn.Tx
	Proof         string
	FullBatchTxns []string
}

// Encode returns the wire form of the receipt.
func (r Receipt) Encode() string {
	return wire.JoinBlock(
		r.Sender,
		r.Recipient,
		strconv.FormatUint(r.ACHeight, 10),
		strconv.FormatUint(r.TxIndex, 10),
		r.Tx.Encode(),
		r.Proof,
		wire.JoinGroup(r.FullBatchTxns),
	)
}

// DecodeReceipt parses a receipt produced by Encode.
func DecodeReceipt(s string) (Receipt, error) {
	parts, err := wire.SplitBlock(s, 7)
	if err != nil {
		return Receipt{}, err
	}

	acHeight, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: receipt acb_height: %s", wire.ErrMalformed, err)
	}
	txIndex, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: receipt tx_index: %s", wire.ErrMalformed, err)
	}
	tx, err := txn.Decode(parts[4])
	if err != nil {
		return Receipt{}, err
	}
	fullBatch, err := wire.SplitGroup(parts[6])
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{
		Sender:        parts[0],
		Recipient:     parts[1],
		ACHeight:      acHeight,
		TxIndex:       txIndex,
		Tx:            tx,
		Proof:         parts[5],
		FullBatchTxns: fullBatch,
	}, nil
}

// handleBatch indexes a batch broadcast into the shared pool (spec
// §4.5). Upsert is idempotent, so redundant deliveries of a batch this
// node already authored (and upserted directly) are harmless.
func (n *Node) handleBatch(ev driver.Event) error {
	encoded, ok := ev.Payload.(string)
	if !ok {
		return fmt.Errorf("node %s: batch: unexpected payload type %T", n.name, ev.Payload)
	}

	batch, err := txn.DecodeBatch(encoded)
	if err != nil {
		n.metrics.Record(metrics.KindBatchDigestMismatch)
		return nil
	}

	n.pool.Upsert(batch)
	return nil
}

// handleReceipt verifies an incoming receipt and, on success, adopts it
// as this node's new proof for the value and records ownership (spec
// §4.3, §4.1).
func (n *Node) handleReceipt(ev driver.Event) error {
	encoded, ok := ev.Payload.(string)
	if !ok {
		return fmt.Errorf("node %s: receipt: unexpected payload type %T", n.name, ev.Payload)
	}

	r, err := DecodeReceipt(encoded)
	if err != nil {
		n.metrics.Record(metrics.KindProofFormat)
		return nil
	}

	if r.Recipient != n.name {
		n.metrics.Record(metrics.KindRecipientMismatch)
		return nil
	}

	p, err := value.Decode(r.Proof)
	if err != nil {
		n.metrics.Record(metrics.KindProofFormat)
		return nil
	}

	if len(p.Entries) == 0 {
		n.metrics.Record(metrics.KindEmptyProof)
		return nil
	}

	if err := p.Verify(n, n.name); err != nil {
		n.log("node: %s: receipt: VERIFY FAILED: tx[%s]: %s", n.name, r.Tx.ID, err)
		n.recordVerifyFailure(err)
		return nil
	}

	n.log("node: %s: receipt: VERIFIED: value[%s] from %s", n.name, r.Tx.ValueID, r.Sender)
	n.values[r.Tx.ValueID] = value.Value{InitOwner: p.InitOwner, InitHeight: p.InitHeight, ValueID: r.Tx.ValueID}
	n.proofs[r.Tx.ValueID] = p
	return nil
}

func (n *Node) recordVerifyFailure(err error) {
	switch {
	case errors.Is(err, value.ErrIncomplete):
		n.metrics.Record(metrics.KindProofIncomplete)
	case errors.Is(err, value.ErrDoubleSpent):
		n.metrics.Record(metrics.KindDoubleSpent)
	case errors.Is(err, value.ErrNotSpend):
		n.metrics.Record(metrics.KindNotSpent)
	case errors.Is(err, value.ErrWrongOwner):
		n.metrics.Record(metrics.KindWrongOwner)
	case errors.Is(err, value.ErrInitHigh):
		n.metrics.Record(metrics.KindInitHeightViolation)
	default:
		n.metrics.Record(metrics.KindProofFormat)
	}
}

// =============================================================================
// value.Ledger implementation — Node is the read-only chain view a
// proof verifies against.

// ACBlockAt implements value.Ledger.
func (n *Node) ACBlockAt(height uint64) (acchain.Block, bool) {
	return n.acChain.At(height)
}

// ACAnyFilterContains implements value.Ledger.
func (n *Node) ACAnyFilterContains(from, to uint64, owner string) (bool, error) {
	if from > to {
		return false, nil
	}
	return n.acChain.AnyFilterContains(from, to, owner)
}

// LatestCCBlock implements value.Ledger.
func (n *Node) LatestCCBlock() ccchain.Block {
	return n.ccChain.Head()
}
